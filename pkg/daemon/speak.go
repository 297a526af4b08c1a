package daemon

import (
	"context"

	"github.com/shshalom/voicesmith-mcp/pkg/speech"
	"github.com/shshalom/voicesmith-mcp/pkg/voice"
)

// SpeakParams is one speak request as it arrives over a tool call or the
// bridge.
type SpeakParams struct {
	// Text to speak.
	Text string `json:"text"`
	// Voice is a catalog voice id or display name. Empty means this
	// session's own voice.
	Voice string `json:"voice,omitempty"`
	// Speed multiplier; zero means the configured default.
	Speed float64 `json:"speed,omitempty"`
	// Block makes the call return only after playback finishes.
	Block bool `json:"block,omitempty"`
}

// Speak resolves the voice and hands the request to the scheduler.
func (d *Daemon) Speak(ctx context.Context, p SpeakParams) speech.SpeakResult {
	d.touchTool()

	voiceID, auto := d.resolveVoice(p.Voice)
	speed := p.Speed
	if speed <= 0 {
		speed = d.cfg.TTS.DefaultSpeed
	}

	d.hub.publish(eventSpeak, map[string]any{
		"phase": "start", "voice": voiceID, "chars": len(p.Text)})
	res := d.sched.Speak(ctx, speech.Request{
		Text:     p.Text,
		VoiceID:  voiceID,
		Speed:    speed,
		Blocking: p.Block,
	})
	res.AutoAssign = auto
	if !res.Queued {
		d.hub.publish(eventSpeak, map[string]any{
			"phase": "done", "voice": voiceID, "success": res.Success})
	}
	return res
}

// resolveVoice maps an id, a display name, or the empty string to a
// catalog voice id. Anything that is not a catalog id goes through
// assignment, so an agent name that matches nothing still gets a stable
// hashed voice instead of a rejection. The bool result reports whether
// the lookup auto-assigned.
func (d *Daemon) resolveVoice(v string) (id string, auto bool) {
	switch {
	case v == "":
		return d.Self().Voice, false
	case voice.ValidID(v):
		return v, false
	default:
		return d.assign.Get(v)
	}
}

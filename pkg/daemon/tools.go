package daemon

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/shshalom/voicesmith-mcp/pkg/session"
	"github.com/shshalom/voicesmith-mcp/pkg/speech"
	"github.com/shshalom/voicesmith-mcp/pkg/voice"
)

// mcpServer builds the stdio tool surface the agent drives. Every
// handler returns a structured result; failures are fields on that
// result, never errors thrown across the protocol boundary.
func (d *Daemon) mcpServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "voicesmith",
		Title:   "Voicesmith voice interface",
		Version: Version,
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "speak",
		Description: "Speak text aloud in this session's voice (or an explicit one). Non-blocking unless block is set.",
		InputSchema: speakSchema(),
	}, d.toolSpeak)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "listen",
		Description: "Record from the microphone until silence or timeout and return the transcript.",
	}, d.toolListen)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "speak_then_listen",
		Description: "Speak a prompt, then immediately listen for the reply.",
	}, d.toolSpeakThenListen)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "stop",
		Description: "Stop current speech playback and cancel any in-progress listen.",
	}, d.toolStop)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "status",
		Description: "Report this session's name, voice, port and capability state.",
	}, d.toolStatus)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_voices",
		Description: "List the available voices grouped by priority tier.",
	}, d.toolListVoices)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "voice_registry",
		Description: "Show the agent-name to voice assignment table and the unassigned pool.",
	}, d.toolVoiceRegistry)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "set_voice",
		Description: "Pin an agent name to a specific voice id.",
	}, d.toolSetVoice)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "mute",
		Description: "Suppress wake-word detections without releasing the microphone.",
	}, d.toolMute)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "unmute",
		Description: "Resume wake-word detections.",
	}, d.toolUnmute)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "wake_enable",
		Description: "Start the background wake-word loop.",
	}, d.toolWakeEnable)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "wake_disable",
		Description: "Stop the background wake-word loop.",
	}, d.toolWakeDisable)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "update_correlation",
		Description: "Attach this session to a logical agent conversation; siblings sharing the id converge on one voice.",
	}, d.toolUpdateCorrelation)

	return srv
}

// speakSchema tightens the inferred schema: speed outside [0.25, 4] is
// rejected by the protocol layer instead of surfacing as an engine
// error.
func speakSchema() *jsonschema.Schema {
	s, err := jsonschema.For[SpeakParams](nil)
	if err != nil {
		return nil // fall back to inference
	}
	if spd, ok := s.Properties["speed"]; ok {
		spd.Minimum = ptr(0.25)
		spd.Maximum = ptr(4.0)
	}
	s.Required = []string{"text"}
	return s
}

func ptr[T any](v T) *T { return &v }

func (d *Daemon) toolSpeak(ctx context.Context, req *mcp.CallToolRequest, p SpeakParams) (*mcp.CallToolResult, speech.SpeakResult, error) {
	return nil, d.Speak(ctx, p), nil
}

func (d *Daemon) toolListen(ctx context.Context, req *mcp.CallToolRequest, p ListenParams) (*mcp.CallToolResult, ListenResult, error) {
	return nil, d.Listen(ctx, p), nil
}

// SpeakThenListenResult pairs the two phases of a voice exchange.
type SpeakThenListenResult struct {
	Speak  speech.SpeakResult `json:"speak"`
	Listen ListenResult       `json:"listen"`
}

type speakThenListenParams struct {
	SpeakParams
	ListenParams
}

func (d *Daemon) toolSpeakThenListen(ctx context.Context, req *mcp.CallToolRequest, p speakThenListenParams) (*mcp.CallToolResult, SpeakThenListenResult, error) {
	var out SpeakThenListenResult
	// The prompt must finish before the microphone opens, or the daemon
	// transcribes itself.
	p.Block = true
	out.Speak = d.Speak(ctx, p.SpeakParams)
	if out.Speak.Success {
		out.Listen = d.Listen(ctx, p.ListenParams)
	} else {
		out.Listen = ListenResult{Error: "skipped: speak failed"}
	}
	return nil, out, nil
}

// StopResult reports what the stop tool interrupted.
type StopResult struct {
	Stopped bool `json:"stopped"`
}

func (d *Daemon) toolStop(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, StopResult, error) {
	return nil, StopResult{Stopped: d.StopAll()}, nil
}

func (d *Daemon) toolStatus(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, Status, error) {
	d.touchTool()
	return nil, d.Status(), nil
}

// VoiceEntry is one catalog voice in tool output.
type VoiceEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Accent string `json:"accent"`
}

// VoicesResult lists the catalog.
type VoicesResult struct {
	Voices []VoiceEntry `json:"voices"`
}

func (d *Daemon) toolListVoices(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, VoicesResult, error) {
	d.touchTool()
	var out VoicesResult
	for _, v := range voice.Catalog {
		out.Voices = append(out.Voices, VoiceEntry{ID: v.ID, Name: v.Name(), Gender: v.Gender, Accent: v.Accent})
	}
	return nil, out, nil
}

// RegistryResult is the assignment table plus what is still free.
type RegistryResult struct {
	Assignments map[string]string `json:"assignments"`
	Pool        []string          `json:"pool"`
}

func (d *Daemon) toolVoiceRegistry(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, RegistryResult, error) {
	d.touchTool()
	return nil, RegistryResult{
		Assignments: d.assign.Snapshot(),
		Pool:        d.assign.Pool(),
	}, nil
}

type setVoiceParams struct {
	// Name is the agent display name to pin.
	Name string `json:"name"`
	// Voice is the catalog voice id to pin it to.
	Voice string `json:"voice"`
}

// SetVoiceResult reports a voice pinning.
type SetVoiceResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (d *Daemon) toolSetVoice(ctx context.Context, req *mcp.CallToolRequest, p setVoiceParams) (*mcp.CallToolResult, SetVoiceResult, error) {
	d.touchTool()
	if err := d.assign.Set(p.Name, p.Voice); err != nil {
		return nil, SetVoiceResult{Error: "invalid voice: " + p.Voice}, nil
	}
	d.persistAssignments()
	return nil, SetVoiceResult{Success: true}, nil
}

// MuteResult reports the mute flag after the call.
type MuteResult struct {
	Muted bool `json:"muted"`
}

func (d *Daemon) toolMute(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, MuteResult, error) {
	d.touchTool()
	d.arb.SetMuted(true)
	return nil, MuteResult{Muted: true}, nil
}

func (d *Daemon) toolUnmute(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, MuteResult, error) {
	d.touchTool()
	d.arb.SetMuted(false)
	return nil, MuteResult{Muted: false}, nil
}

// WakeResult reports the wake loop state after an enable/disable.
type WakeResult struct {
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

func (d *Daemon) toolWakeEnable(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, WakeResult, error) {
	d.touchTool()
	if !d.listenOK {
		return nil, WakeResult{Error: "wake word requires the listen capability"}, nil
	}
	if d.wakeErr != nil {
		return nil, WakeResult{Error: "wake unavailable: " + d.wakeErr.Error()}, nil
	}
	if err := d.arb.Start(); err != nil {
		return nil, WakeResult{Error: err.Error()}, nil
	}
	return nil, WakeResult{Enabled: true}, nil
}

func (d *Daemon) toolWakeDisable(ctx context.Context, req *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, WakeResult, error) {
	d.touchTool()
	d.arb.Stop()
	return nil, WakeResult{Enabled: false}, nil
}

type correlationParams struct {
	// SessionID groups sibling processes; empty generates a fresh id.
	SessionID string `json:"session_id,omitempty"`
}

// CorrelationResult is the session entry after reconciliation.
type CorrelationResult struct {
	Record *session.Record `json:"record"`
	Error  string          `json:"error,omitempty"`
}

func (d *Daemon) toolUpdateCorrelation(ctx context.Context, req *mcp.CallToolRequest, p correlationParams) (*mcp.CallToolResult, CorrelationResult, error) {
	rec, err := d.SetCorrelation(p.SessionID)
	if err != nil {
		return nil, CorrelationResult{Error: err.Error()}, nil
	}
	if rec == nil {
		return nil, CorrelationResult{Error: "session not registered"}, nil
	}
	return nil, CorrelationResult{Record: rec}, nil
}

package daemon

import (
	"context"
	"errors"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/capture"
	"github.com/shshalom/voicesmith-mcp/pkg/vad"
	"github.com/shshalom/voicesmith-mcp/pkg/wake"
)

// ListenParams tune one foreground capture. Zero values take the
// configured defaults.
type ListenParams struct {
	// TimeoutS caps the whole recording, in seconds.
	TimeoutS float64 `json:"timeout,omitempty"`
	// SilenceS is the post-speech silence that ends it, in seconds.
	SilenceS float64 `json:"silence_threshold,omitempty"`
}

// ListenResult is the outcome of one capture-and-transcribe cycle. The
// JSON field names are the tool output contract.
type ListenResult struct {
	Success         bool    `json:"success"`
	Text            string  `json:"text,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	DurationMs      float64 `json:"duration_ms,omitempty"`
	TranscriptionMs float64 `json:"transcription_ms,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Listen runs one foreground capture: take the microphone from the wake
// loop, record until silence or timeout, transcribe, hand the microphone
// back. A second concurrent call fails fast with a busy result; it is
// never queued.
func (d *Daemon) Listen(ctx context.Context, p ListenParams) ListenResult {
	d.touchTool()
	if !d.listenOK {
		return ListenResult{Error: "listen unavailable: transcription engine not configured"}
	}
	if !d.listenBusy.CompareAndSwap(false, true) {
		return ListenResult{Error: "busy: listen already in progress"}
	}
	defer d.listenBusy.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.listenCancel.Store(cancel)
	defer d.listenCancel.Store(context.CancelFunc(nil))

	timeout := d.cfg.STT.Timeout()
	if p.TimeoutS > 0 {
		timeout = time.Duration(p.TimeoutS * float64(time.Second))
	}
	silence := d.cfg.STT.Silence()
	if p.SilenceS > 0 {
		silence = time.Duration(p.SilenceS * float64(time.Second))
	}

	// The wake loop must release the device before we open our own
	// stream. On a yield timeout we proceed anyway: returning busy
	// forever is worse than briefly contending for the device.
	if err := d.arb.Yield(ctx); err != nil {
		if errors.Is(err, wake.ErrYieldTimeout) {
			d.log.Warn("wake loop did not yield in time, capturing anyway")
		} else {
			return ListenResult{Error: "cancelled: " + err.Error()}
		}
	}
	defer d.arb.Reclaim()

	d.hub.publish(eventListen, map[string]any{"phase": "recording"})
	start := time.Now()
	samples, err := d.rec.Record(ctx, capture.Params{
		Timeout: timeout,
		Silence: silence,
	})
	durationMs := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		return listenError(err, durationMs)
	}

	tr, err := d.trans.Transcribe(ctx, samples, vad.SampleRate)
	if err != nil {
		if ctx.Err() != nil {
			return ListenResult{Error: "cancelled", DurationMs: durationMs}
		}
		return ListenResult{Error: "transcription failed: " + err.Error(), DurationMs: durationMs}
	}

	res := ListenResult{
		Success:         true,
		Text:            tr.Text,
		Confidence:      tr.Confidence,
		DurationMs:      durationMs,
		TranscriptionMs: tr.TranscriptionMs,
	}
	d.hub.publish(eventListen, map[string]any{"phase": "done", "text": tr.Text})
	return res
}

func listenError(err error, durationMs float64) ListenResult {
	switch {
	case errors.Is(err, capture.ErrBusy):
		return ListenResult{Error: "busy: listen already in progress"}
	case errors.Is(err, capture.ErrNoSpeech):
		return ListenResult{Error: "timeout: no speech detected", DurationMs: durationMs}
	case errors.Is(err, context.Canceled):
		return ListenResult{Error: "cancelled", DurationMs: durationMs}
	default:
		return ListenResult{Error: "capture failed: " + err.Error(), DurationMs: durationMs}
	}
}

// StopAll interrupts current playback and any in-flight listen. Reports
// whether anything was actually stopped.
func (d *Daemon) StopAll() bool {
	d.touchTool()
	stopped := d.sched.Stop()
	if d.cancelListen() {
		stopped = true
	}
	return stopped
}

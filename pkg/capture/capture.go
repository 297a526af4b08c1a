// Package capture records speech from the microphone: it reads
// fixed-size frames from an input stream, runs voice activity detection
// on each one, and stops after a run of post-speech silence, a timeout,
// or cancellation.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/pcm"
	"github.com/shshalom/voicesmith-mcp/pkg/vad"
)

// Defaults for a foreground listen.
const (
	// DefaultTimeout bounds the whole recording.
	DefaultTimeout = 15 * time.Second
	// DefaultSilence is the post-speech silence that ends a recording.
	DefaultSilence = 1500 * time.Millisecond
	// FrameDuration is the VAD granularity: 512 samples at 16 kHz.
	FrameDuration = 32 * time.Millisecond
)

var (
	// ErrBusy rejects a second concurrent recording immediately.
	ErrBusy = errors.New("capture: recording already in progress")
	// ErrNoSpeech reports a recording window with no detected speech.
	ErrNoSpeech = errors.New("capture: no speech detected")
)

// Stream delivers fixed-size PCM frames from an input device.
// *portaudio.InputStream satisfies it.
type Stream interface {
	ReadInto(buf []int16) error
	FrameSamples() int
	Format() pcm.Format
	Close() error
}

// StreamOpener opens a fresh input stream for one recording episode.
// Opening per episode (rather than holding the device) is what makes the
// yield/reclaim handshake possible.
type StreamOpener func() (Stream, error)

// Params tune one recording.
type Params struct {
	Timeout  time.Duration // max total duration (default DefaultTimeout)
	NoSpeech time.Duration // abort when nothing is detected this long (default: Timeout)
	Silence  time.Duration // post-speech silence cutoff (default DefaultSilence)
}

// Recorder runs VAD-gated recordings. One at a time: a second Record
// while one is in flight fails fast with ErrBusy rather than queueing.
type Recorder struct {
	open StreamOpener
	det  vad.Detector
	log  *slog.Logger
	busy atomic.Bool
}

// NewRecorder creates a recorder over an opener and a detector.
func NewRecorder(open StreamOpener, det vad.Detector, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{open: open, det: det, log: log}
}

// Recording reports whether a capture is in flight.
func (r *Recorder) Recording() bool { return r.busy.Load() }

// Record captures until the silence cutoff after speech, the timeout, or
// ctx cancellation. Cancellation and the deadline are checked at every
// frame read. The recording includes any leading non-speech audio, which
// transcription handles better than a hard-trimmed onset.
//
// Returns ErrNoSpeech when the window closed with nothing detected (the
// shorter NoSpeech deadline gives up early in that case), and ctx.Err()
// when cancelled. Hitting the timeout mid-speech is not an error: what
// was captured is returned.
func (r *Recorder) Record(ctx context.Context, p Params) ([]int16, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer r.busy.Store(false)

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	noSpeech := p.NoSpeech
	if noSpeech <= 0 || noSpeech > timeout {
		noSpeech = timeout
	}
	silence := p.Silence
	if silence <= 0 {
		silence = DefaultSilence
	}

	stream, err := r.open()
	if err != nil {
		return nil, fmt.Errorf("capture: open input: %w", err)
	}
	defer stream.Close()

	r.det.Reset()

	frame := make([]int16, stream.FrameSamples())
	frameDur := stream.Format().Duration(stream.FrameSamples())
	start := time.Now()
	deadline := start.Add(timeout)
	noSpeechBy := start.Add(noSpeech)

	var (
		recorded   []int16
		speech     bool
		silenceDur time.Duration
	)
	r.log.Debug("recording started", "timeout", timeout, "silence", silence)

	for {
		if err := ctx.Err(); err != nil {
			r.log.Info("recording cancelled")
			return nil, err
		}
		now := time.Now()
		if !speech && now.After(noSpeechBy) {
			r.log.Info("recording timed out with no speech")
			return nil, ErrNoSpeech
		}
		if now.After(deadline) {
			r.log.Info("recording timed out mid-speech")
			break
		}

		if err := stream.ReadInto(frame); err != nil {
			return nil, fmt.Errorf("capture: read input: %w", err)
		}
		recorded = append(recorded, frame...)

		isSpeech, err := r.det.IsSpeech(frame)
		if err != nil {
			return nil, fmt.Errorf("capture: vad: %w", err)
		}
		switch {
		case isSpeech:
			speech = true
			silenceDur = 0
		case speech:
			silenceDur += frameDur
			if silenceDur >= silence {
				r.log.Debug("silence cutoff reached")
				return recorded, nil
			}
		}
	}

	if !speech || len(recorded) == 0 {
		return nil, ErrNoSpeech
	}
	return recorded, nil
}

package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/player"
)

// Playback is the audio output the scheduler drives. Play blocks for the
// clip; Stop interrupts the current clip and reports whether one was
// playing. *player.Player satisfies it.
type Playback interface {
	Play(ctx context.Context, samples []int16, sampleRate int) error
	Stop() bool
}

// Request is one speak call.
type Request struct {
	Text     string
	VoiceID  string
	Speed    float64
	Blocking bool
}

// Scheduler serializes speech: text is chunked on sentence boundaries,
// each chunk is synthesized and then played before the next, and
// concurrent requests take turns. Stop cuts the current clip; the
// in-flight request reports itself stopped instead of failed.
type Scheduler struct {
	synth    Synthesizer
	playback Playback
	log      *slog.Logger
	maxChunk int

	mu       sync.Mutex // serializes whole requests
	speaking atomic.Bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxChunk overrides the chunk budget (default MaxChunkLen).
func WithMaxChunk(n int) SchedulerOption {
	return func(s *Scheduler) { s.maxChunk = n }
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(log *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.log = log }
}

// NewScheduler creates a scheduler. synth may be nil when the TTS engine
// failed to initialize; Speak then reports the degraded capability.
func NewScheduler(synth Synthesizer, playback Playback, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		synth:    synth,
		playback: playback,
		log:      slog.Default(),
		maxChunk: MaxChunkLen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak synthesizes and plays req.Text. Blocking requests return after
// playback finishes (or stops, or fails) with full timings. Non-blocking
// requests detach playback onto a goroutine and return immediately with
// Queued set; their outcome is only logged.
func (s *Scheduler) Speak(ctx context.Context, req Request) SpeakResult {
	if s.synth == nil {
		return SpeakResult{Success: false, Voice: req.VoiceID, Error: ErrNoEngine.Error()}
	}

	if !req.Blocking {
		// Detached from the caller's cancellation: a queued speak keeps
		// playing after the tool call returns.
		bg := context.WithoutCancel(ctx)
		go func() {
			res := s.speakBlocking(bg, req)
			if !res.Success {
				s.log.Warn("queued speak failed", "voice", req.VoiceID, "err", res.Error)
			}
		}()
		return SpeakResult{Success: true, Voice: req.VoiceID, Queued: true}
	}

	return s.speakBlocking(ctx, req)
}

func (s *Scheduler) speakBlocking(ctx context.Context, req Request) SpeakResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.speaking.Store(true)
	defer s.speaking.Store(false)

	res := SpeakResult{Voice: req.VoiceID}
	for _, chunk := range ChunkText(req.Text, s.maxChunk) {
		syn, err := s.synth.Synthesize(ctx, chunk, req.VoiceID, req.Speed)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.SynthesisMs += syn.SynthesisMs

		start := time.Now()
		err = s.playback.Play(ctx, syn.Samples, syn.SampleRate)
		res.DurationMs += float64(time.Since(start).Microseconds()) / 1000

		if err != nil {
			if errors.Is(err, player.ErrStopped) {
				res.Success = true
				res.Stopped = true
				return res
			}
			res.Error = err.Error()
			return res
		}
	}
	res.Success = true
	return res
}

// Stop interrupts current playback and reports whether anything was
// playing.
func (s *Scheduler) Stop() bool {
	return s.playback.Stop()
}

// Speaking reports whether a request is currently being rendered.
func (s *Scheduler) Speaking() bool {
	return s.speaking.Load()
}

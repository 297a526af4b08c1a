package wake

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/pcm"
	"github.com/shshalom/voicesmith-mcp/pkg/capture"
	"github.com/shshalom/voicesmith-mcp/pkg/speech"
	"github.com/shshalom/voicesmith-mcp/pkg/vad"
	"github.com/shshalom/voicesmith-mcp/pkg/wakeword"
)

// Defaults for the wake loop.
const (
	// DefaultThreshold is the detection confidence that triggers recording.
	DefaultThreshold = 0.5
	// DefaultRecordingTimeout caps an utterance after a detection.
	DefaultRecordingTimeout = 10 * time.Second
	// DefaultNoSpeechTimeout abandons a detection nobody followed up on.
	DefaultNoSpeechTimeout = 5 * time.Second
	// DefaultYieldWait bounds how long Yield blocks for the loop to park.
	DefaultYieldWait = 3 * time.Second
)

const (
	settleDelay  = 150 * time.Millisecond // let the device settle between streams
	parkPoll     = 100 * time.Millisecond
	yieldPoll    = 10 * time.Millisecond
	reopenDelay  = time.Second
	openAttempts = 3
	openRetryGap = 200 * time.Millisecond
	cueTimeout   = 2 * time.Second
)

var (
	// ErrNoScorer means no wake model is loaded, so the loop cannot start.
	ErrNoScorer = errors.New("wake: no scorer configured")
	// ErrYieldTimeout means the loop did not park within the yield window.
	// Callers typically proceed anyway; the loop parks as soon as it can.
	ErrYieldTimeout = errors.New("wake: yield timed out")
)

// MicOpener opens an input stream delivering frames of the given
// duration. The arbiter opens one stream per phase and never holds a
// stream while parked, which is what lets another capture path take the
// device.
type MicOpener func(frame time.Duration) (capture.Stream, error)

// Cue plays the short ready signal after a detection. Best-effort.
type Cue func(ctx context.Context) error

// Event kinds emitted to the Notifier.
const (
	EventState      = "state"
	EventDetection  = "detection"
	EventTranscript = "transcript"
)

// Event is a wake-loop lifecycle notification.
type Event struct {
	Kind   string  `json:"kind"`
	State  State   `json:"state,omitempty"`
	Score  float32 `json:"score,omitempty"`
	Text   string  `json:"text,omitempty"`
	Target string  `json:"target,omitempty"`
}

// Notifier receives lifecycle events. Called from the loop goroutine;
// implementations must not block.
type Notifier func(Event)

// Arbiter is the wake-word loop and the process's microphone arbiter.
type Arbiter struct {
	open       MicOpener
	scorer     wakeword.Scorer
	rec        *capture.Recorder
	trans      speech.Transcriber
	router     *Router
	cue        Cue
	notify     Notifier
	threshold  float32
	recTimeout time.Duration
	noSpeech   time.Duration
	silence    time.Duration
	yieldWait  time.Duration
	wakeFrame  time.Duration
	log        *slog.Logger

	state    atomic.Int32
	muted    atomic.Bool
	yieldReq atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithThreshold sets the detection confidence threshold.
func WithThreshold(t float32) Option {
	return func(a *Arbiter) { a.threshold = t }
}

// WithRecordingTimeout caps the post-detection recording.
func WithRecordingTimeout(d time.Duration) Option {
	return func(a *Arbiter) { a.recTimeout = d }
}

// WithNoSpeechTimeout sets how long to wait for speech after a detection.
func WithNoSpeechTimeout(d time.Duration) Option {
	return func(a *Arbiter) { a.noSpeech = d }
}

// WithSilence sets the post-speech silence that ends a recording.
func WithSilence(d time.Duration) Option {
	return func(a *Arbiter) { a.silence = d }
}

// WithYieldWait bounds Yield's wait for the loop to park.
func WithYieldWait(d time.Duration) Option {
	return func(a *Arbiter) { a.yieldWait = d }
}

// WithCue plays a ready signal when recording starts.
func WithCue(c Cue) Option {
	return func(a *Arbiter) { a.cue = c }
}

// WithNotifier subscribes to lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(a *Arbiter) { a.notify = n }
}

// WithLogger sets the loop's logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Arbiter) { a.log = log }
}

// New creates an arbiter. scorer may be nil when no wake model is
// available; Start then refuses with ErrNoScorer and everything else
// keeps working.
func New(open MicOpener, scorer wakeword.Scorer, det vad.Detector, trans speech.Transcriber, router *Router, opts ...Option) *Arbiter {
	a := &Arbiter{
		open:       open,
		scorer:     scorer,
		trans:      trans,
		router:     router,
		threshold:  DefaultThreshold,
		recTimeout: DefaultRecordingTimeout,
		noSpeech:   DefaultNoSpeechTimeout,
		silence:    capture.DefaultSilence,
		yieldWait:  DefaultYieldWait,
		wakeFrame:  pcm.L16Mono16K.Duration(wakeword.FrameSamples),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	// Recording streams get a few open attempts: the device can take a
	// moment to come back after the wake stream closes.
	openRec := func() (capture.Stream, error) {
		var err error
		for i := 0; i < openAttempts; i++ {
			var s capture.Stream
			s, err = a.open(capture.FrameDuration)
			if err == nil {
				return s, nil
			}
			a.log.Warn("mic open attempt failed", "attempt", i+1, "error", err)
			time.Sleep(openRetryGap)
		}
		return nil, err
	}
	a.rec = capture.NewRecorder(openRec, det, a.log)
	return a
}

// State returns the loop's current state.
func (a *Arbiter) State() State { return State(a.state.Load()) }

// Muted reports whether detections are suppressed.
func (a *Arbiter) Muted() bool { return a.muted.Load() }

// SetMuted suppresses or restores detections. The loop keeps draining
// the device while muted so unmuting is instant.
func (a *Arbiter) SetMuted(m bool) { a.muted.Store(m) }

// Start launches the wake loop. Idempotent; a second Start while running
// is a no-op.
func (a *Arbiter) Start() error {
	if a.scorer == nil {
		return ErrNoScorer
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.log.Warn("wake loop already running")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.setState(StateListening)
	a.wg.Add(1)
	go a.run(ctx)
	a.log.Info("wake loop started", "threshold", a.threshold)
	return nil
}

// Stop terminates the loop and waits for it to exit. Idempotent.
func (a *Arbiter) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	a.wg.Wait()
	a.log.Info("wake loop stopped")
}

// Yield asks the loop to release the microphone and waits until it has.
// Returns nil immediately when the loop is not listening (disabled, or
// already past detection into a recording of its own). ErrYieldTimeout
// means the loop did not park in time; the device may still be held.
func (a *Arbiter) Yield(ctx context.Context) error {
	if a.State() != StateListening {
		return nil
	}
	a.yieldReq.Store(true)
	deadline := time.NewTimer(a.yieldWait)
	defer deadline.Stop()
	tick := time.NewTicker(yieldPoll)
	defer tick.Stop()
	for {
		switch a.State() {
		case StateYielded, StateDisabled:
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrYieldTimeout
		case <-tick.C:
		}
	}
}

// Reclaim hands the microphone back. Asynchronous: the loop resumes
// listening on its next park poll.
func (a *Arbiter) Reclaim() {
	a.yieldReq.Store(false)
}

func (a *Arbiter) setState(s State) {
	old := State(a.state.Swap(int32(s)))
	if old != s && a.notify != nil {
		a.notify(Event{Kind: EventState, State: s})
	}
}

func (a *Arbiter) run(ctx context.Context) {
	defer a.wg.Done()
	defer a.setState(StateDisabled)
	for ctx.Err() == nil {
		if a.yieldReq.Load() {
			a.park(ctx)
			continue
		}
		a.listenOnce(ctx)
	}
}

// park idles without a stream until reclaimed or stopped.
func (a *Arbiter) park(ctx context.Context) {
	a.setState(StateYielded)
	defer a.setState(StateListening)
	tick := time.NewTicker(parkPoll)
	defer tick.Stop()
	for a.yieldReq.Load() {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// listenOnce holds one wake-detection stream: it scores frames until a
// detection (which it handles before returning), a yield request, an
// error, or shutdown. The caller reopens on the next iteration.
func (a *Arbiter) listenOnce(ctx context.Context) {
	stream, err := a.open(a.wakeFrame)
	if err != nil {
		a.log.Error("open mic for wake detection", "error", err)
		sleepCtx(ctx, reopenDelay)
		return
	}
	defer stream.Close()
	a.scorer.Reset()

	frame := make([]int16, stream.FrameSamples())
	for {
		if ctx.Err() != nil || a.yieldReq.Load() {
			return
		}
		if err := stream.ReadInto(frame); err != nil {
			if ctx.Err() == nil {
				a.log.Error("wake frame read", "error", err)
				sleepCtx(ctx, reopenDelay)
			}
			return
		}
		if a.muted.Load() {
			continue
		}
		score, err := a.scorer.Score(frame)
		if err != nil {
			a.log.Error("wake scoring", "error", err)
			sleepCtx(ctx, reopenDelay)
			return
		}
		if score > a.threshold {
			a.log.Info("wake word detected", "score", score)
			if a.notify != nil {
				a.notify(Event{Kind: EventDetection, Score: score})
			}
			// Release the device before the recording phase opens its own
			// stream.
			stream.Close()
			a.onWake(ctx)
			return
		}
	}
}

// onWake records the utterance that follows a detection, transcribes it,
// and routes the text. Every abort path just falls back to listening.
func (a *Arbiter) onWake(ctx context.Context) {
	a.setState(StateRecording)
	defer a.setState(StateListening)

	sleepCtx(ctx, settleDelay)
	if ctx.Err() != nil {
		return
	}

	if a.cue != nil {
		cueCtx, cancel := context.WithTimeout(ctx, cueTimeout)
		if err := a.cue(cueCtx); err != nil {
			a.log.Debug("ready cue failed", "error", err)
		}
		cancel()
	}

	samples, err := a.rec.Record(ctx, capture.Params{
		Timeout:  a.recTimeout,
		NoSpeech: a.noSpeech,
		Silence:  a.silence,
	})
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrNoSpeech):
			a.log.Info("no speech after wake word")
		case ctx.Err() != nil:
		default:
			a.log.Error("wake recording failed", "error", err)
		}
		return
	}

	a.log.Info("transcribing wake utterance",
		"seconds", float64(len(samples))/float64(vad.SampleRate))
	tr, err := a.trans.Transcribe(ctx, samples, vad.SampleRate)
	if err != nil {
		if ctx.Err() == nil {
			a.log.Error("wake transcription failed", "error", err)
		}
		return
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		a.log.Info("empty transcription after wake word")
		return
	}

	target, err := a.router.Route(ctx, text)
	switch {
	case errors.Is(err, ErrNoTarget):
		a.log.Warn("no terminal session for wake transcript")
	case err != nil:
		a.log.Error("transcript routing failed", "error", err)
	case target != "" && a.notify != nil:
		a.notify(Event{Kind: EventTranscript, Text: text, Target: target})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

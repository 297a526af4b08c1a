// Package wakeword scores microphone audio for the presence of a spoken
// wake phrase.
//
// The arbiter's listening loop calls [Scorer.Score] once per 80 ms frame.
// The ncnn-backed scorer keeps a rolling window of recent audio, turns it
// into log mel filterbank features and runs a small classifier over them;
// the returned confidence crosses the configured threshold when the phrase
// was just spoken.
package wakeword

import (
	"fmt"
	"math"
	"sync"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/fbank"
	"github.com/shshalom/voicesmith-mcp/pkg/ncnn"
)

// FrameSamples is the scoring granularity: 1280 samples of 16 kHz audio,
// 80 ms per frame.
const FrameSamples = 1280

// SampleRate is the only rate scorers operate on.
const SampleRate = 16000

// Scorer scores successive fixed-size frames for wake-phrase presence.
// Reset clears accumulated context and must be called when listening
// resumes after an interruption.
type Scorer interface {
	Score(frame []int16) (float32, error)
	Reset()
}

// NCNNScorer runs a wake-phrase classifier graph over fbank features of a
// rolling audio window.
type NCNNScorer struct {
	mu     sync.Mutex
	net    *ncnn.Net
	ex     *fbank.Extractor
	window []int16
	closed bool

	windowSamples int
	inName        string
	outName       string
	logits        bool
}

// ScorerOption configures an NCNNScorer.
type ScorerOption func(*NCNNScorer)

// WithWindow sets the rolling context length in samples
// (default 24000 = 1.5 s).
func WithWindow(samples int) ScorerOption {
	return func(s *NCNNScorer) {
		if samples > 0 {
			s.windowSamples = samples
		}
	}
}

// WithBlobNames overrides the model's input/output blob names
// (default "in0"/"out0").
func WithBlobNames(in, out string) ScorerOption {
	return func(s *NCNNScorer) { s.inName = in; s.outName = out }
}

// WithLogitOutput applies a sigmoid to the model output, for graphs whose
// final layer emits a raw logit instead of a probability.
func WithLogitOutput() ScorerOption {
	return func(s *NCNNScorer) { s.logits = true }
}

// NewNCNNScorer loads the classifier from .param/.bin files.
func NewNCNNScorer(paramPath, binPath string, opts ...ScorerOption) (*NCNNScorer, error) {
	net, err := ncnn.NewNet(paramPath, binPath)
	if err != nil {
		return nil, fmt.Errorf("wakeword: load model: %w", err)
	}
	s := &NCNNScorer{
		net:           net,
		ex:            fbank.New(fbank.DefaultConfig()),
		windowSamples: 24000,
		inName:        "in0",
		outName:       "out0",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Score implements [Scorer]. Confidence is 0 until the rolling window has
// filled once.
func (s *NCNNScorer) Score(frame []int16) (float32, error) {
	if len(frame) != FrameSamples {
		return 0, fmt.Errorf("wakeword: frame size %d, want %d", len(frame), FrameSamples)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("wakeword: scorer is closed")
	}

	s.window = append(s.window, frame...)
	if len(s.window) > s.windowSamples {
		s.window = s.window[len(s.window)-s.windowSamples:]
	}
	if len(s.window) < s.windowSamples {
		return 0, nil
	}

	feats := s.ex.Extract(s.window)
	if len(feats) == 0 {
		return 0, nil
	}

	flat := fbank.Flatten(feats)
	mat, err := ncnn.NewMat2D(s.ex.NumMels(), len(feats), flat)
	if err != nil {
		return 0, fmt.Errorf("wakeword: %w", err)
	}
	defer mat.Close()

	ex, err := s.net.NewExtractor()
	if err != nil {
		return 0, fmt.Errorf("wakeword: %w", err)
	}
	defer ex.Close()

	if err := ex.SetInput(s.inName, mat); err != nil {
		return 0, fmt.Errorf("wakeword: %w", err)
	}
	out, err := ex.Extract(s.outName)
	if err != nil {
		return 0, fmt.Errorf("wakeword: %w", err)
	}
	defer out.Close()

	data := out.FloatData()
	if len(data) == 0 {
		return 0, fmt.Errorf("wakeword: empty model output")
	}

	conf := data[0]
	if s.logits {
		conf = float32(1.0 / (1.0 + math.Exp(-float64(conf))))
	}
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	return conf, nil
}

// Reset implements [Scorer].
func (s *NCNNScorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = s.window[:0]
}

// Close releases the model.
func (s *NCNNScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.net.Close()
}

var _ Scorer = (*NCNNScorer)(nil)

package vad

import (
	"fmt"
	"sync"

	"github.com/shshalom/voicesmith-mcp/pkg/ncnn"
)

// Silero runs the silero-vad model as an ncnn graph. Input is one
// [1, 512] float32 window, output a single speech probability.
//
// Safe for use from one goroutine at a time, matching the capture loop's
// single-reader discipline.
type Silero struct {
	mu        sync.Mutex
	net       *ncnn.Net
	threshold float32
	inName    string
	outName   string
	closed    bool

	// Probability smoothing across the last few windows. Model output on
	// 32 ms windows is jittery at speech onsets; a short average stabilizes
	// the silence-cutoff decision.
	recent []float32
}

// SileroOption configures a Silero detector.
type SileroOption func(*Silero)

// WithThreshold sets the speech probability threshold (default 0.5).
func WithThreshold(t float32) SileroOption {
	return func(s *Silero) { s.threshold = t }
}

// WithBlobNames overrides the model's input/output blob names
// (default "in0"/"out0", the PNNX conversion convention).
func WithBlobNames(in, out string) SileroOption {
	return func(s *Silero) { s.inName = in; s.outName = out }
}

// NewSilero loads the silero graph from .param/.bin files.
func NewSilero(paramPath, binPath string, opts ...SileroOption) (*Silero, error) {
	net, err := ncnn.NewNet(paramPath, binPath)
	if err != nil {
		return nil, fmt.Errorf("vad: load silero: %w", err)
	}
	s := &Silero{
		net:       net,
		threshold: 0.5,
		inName:    "in0",
		outName:   "out0",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IsSpeech implements [Detector].
func (s *Silero) IsSpeech(frame []int16) (bool, error) {
	p, err := s.Probability(frame)
	if err != nil {
		return false, err
	}
	return p > s.threshold, nil
}

// Probability returns the smoothed speech probability for one frame.
func (s *Silero) Probability(frame []int16) (float32, error) {
	if len(frame) != WindowSamples {
		return 0, fmt.Errorf("vad: frame size %d, want %d", len(frame), WindowSamples)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("vad: detector is closed")
	}

	input := make([]float32, WindowSamples)
	for i, v := range frame {
		input[i] = float32(v) / 32768.0
	}

	mat, err := ncnn.NewMat2D(WindowSamples, 1, input)
	if err != nil {
		return 0, fmt.Errorf("vad: %w", err)
	}
	defer mat.Close()

	ex, err := s.net.NewExtractor()
	if err != nil {
		return 0, fmt.Errorf("vad: %w", err)
	}
	defer ex.Close()

	if err := ex.SetInput(s.inName, mat); err != nil {
		return 0, fmt.Errorf("vad: %w", err)
	}
	out, err := ex.Extract(s.outName)
	if err != nil {
		return 0, fmt.Errorf("vad: %w", err)
	}
	defer out.Close()

	data := out.FloatData()
	if len(data) == 0 {
		return 0, fmt.Errorf("vad: empty model output")
	}

	s.recent = append(s.recent, data[0])
	if len(s.recent) > 3 {
		s.recent = s.recent[len(s.recent)-3:]
	}
	var sum float32
	for _, p := range s.recent {
		sum += p
	}
	return sum / float32(len(s.recent)), nil
}

// Reset implements [Detector].
func (s *Silero) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = s.recent[:0]
}

// Close releases the model.
func (s *Silero) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.net.Close()
}

var _ Detector = (*Silero)(nil)

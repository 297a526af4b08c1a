// Package speech turns text into played audio and captured audio into
// text. It defines the engine interfaces, OpenAI-compatible clients for
// Kokoro-style TTS and Whisper-style STT servers, sentence-aligned text
// chunking, and the scheduler that serializes synthesis with playback.
package speech

import (
	"context"
	"errors"
)

// Sentinel errors mapped to tool-level failure classes by the daemon.
var (
	// ErrInvalidVoice marks a voice id outside the catalog.
	ErrInvalidVoice = errors.New("speech: invalid voice id")
	// ErrNoEngine is returned while a capability is degraded because its
	// engine failed to initialize.
	ErrNoEngine = errors.New("speech: engine unavailable")
)

// Synthesis is one TTS result: mono 16-bit PCM plus timing.
type Synthesis struct {
	Samples     []int16
	SampleRate  int
	SynthesisMs float64
}

// DurationMs returns the audio length in milliseconds.
func (s *Synthesis) DurationMs() float64 {
	if s.SampleRate == 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate) * 1000
}

// Transcription is one STT result.
type Transcription struct {
	Text            string
	Confidence      float64
	TranscriptionMs float64
	Language        string
}

// Synthesizer converts text to PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, speed float64) (*Synthesis, error)
}

// Transcriber converts PCM to text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (*Transcription, error)
}

// SpeakResult is the outcome of one speak request. The JSON field names
// are the tool output contract.
type SpeakResult struct {
	Success     bool    `json:"success"`
	Voice       string  `json:"voice,omitempty"`
	AutoAssign  bool    `json:"auto_assigned,omitempty"`
	DurationMs  float64 `json:"duration_ms,omitempty"`
	SynthesisMs float64 `json:"synthesis_ms,omitempty"`
	Queued      bool    `json:"queued,omitempty"`
	Stopped     bool    `json:"stopped,omitempty"`
	Error       string  `json:"error,omitempty"`
}

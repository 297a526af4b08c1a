// Package vad decides whether short frames of microphone audio contain
// speech. The capture loop feeds it fixed 512-sample windows of 16 kHz
// mono PCM and uses the verdict to find the end of an utterance.
//
// Two detectors are provided: [Silero], running the silero-vad graph via
// ncnn, and [Energy], a plain RMS gate used when no model is configured.
package vad

// WindowSamples is the frame size every Detector consumes: 512 samples of
// 16 kHz audio, 32 ms per window.
const WindowSamples = 512

// SampleRate is the only rate detectors operate on.
const SampleRate = 16000

// Detector reports speech activity per fixed-size frame.
//
// Implementations keep internal state across frames (model memory,
// adaptive floors); Reset clears it and must be called between independent
// recordings.
type Detector interface {
	// IsSpeech scores one WindowSamples-sized frame.
	IsSpeech(frame []int16) (bool, error)
	// Reset clears accumulated state.
	Reset()
}

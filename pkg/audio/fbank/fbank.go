// Package fbank computes log mel filterbank features from PCM16 audio.
//
// This is the front-end for the wake-word classifier: fixed windows of
// microphone audio become [T, numMels] float32 matrices fed to ncnn
// inference. Defaults follow the Kaldi convention for 16 kHz speech
// (25 ms window, 10 ms hop, 80 mel bins).
package fbank

import "math"

// Config controls feature extraction.
type Config struct {
	SampleRate  int     // input rate in Hz (default 16000)
	WindowSize  int     // analysis window in samples (default 400 = 25ms)
	HopSize     int     // hop in samples (default 160 = 10ms)
	FFTSize     int     // FFT length, power of two >= WindowSize (default 512)
	NumMels     int     // mel bins (default 80)
	LowFreq     float64 // lowest filter edge in Hz (default 20)
	HighFreq    float64 // highest filter edge in Hz (default 7600)
	PreEmphasis float64 // pre-emphasis coefficient (default 0.97)
}

// DefaultConfig returns the standard 16 kHz speech front-end configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		WindowSize:  400,
		HopSize:     160,
		FFTSize:     512,
		NumMels:     80,
		LowFreq:     20,
		HighFreq:    7600,
		PreEmphasis: 0.97,
	}
}

// Extractor computes features with precomputed window and filterbank tables.
// Safe for concurrent use: Extract allocates its own working buffers.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
}

// New creates an Extractor for the given config.
func New(cfg Config) *Extractor {
	return &Extractor{
		cfg:     cfg,
		window:  hammingWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
	}
}

// Extract computes log mel features from int16 PCM samples.
// Returns a [T][numMels] matrix with T = (len(pcm)-WindowSize)/HopSize + 1,
// or nil when pcm is shorter than one window.
func (e *Extractor) Extract(pcm []int16) [][]float32 {
	cfg := e.cfg
	if len(pcm) < cfg.WindowSize {
		return nil
	}

	numFrames := (len(pcm)-cfg.WindowSize)/cfg.HopSize + 1
	halfFFT := cfg.FFTSize/2 + 1

	features := make([][]float32, numFrames)
	re := make([]float64, cfg.FFTSize)
	im := make([]float64, cfg.FFTSize)
	power := make([]float64, halfFFT)

	for t := 0; t < numFrames; t++ {
		start := t * cfg.HopSize

		// Normalize, pre-emphasize and window in one pass.
		for i := 0; i < cfg.WindowSize; i++ {
			s := float64(pcm[start+i]) / 32768.0
			if i > 0 {
				s -= cfg.PreEmphasis * float64(pcm[start+i-1]) / 32768.0
			}
			re[i] = s * e.window[i]
		}
		for i := cfg.WindowSize; i < cfg.FFTSize; i++ {
			re[i] = 0
		}
		for i := range im {
			im[i] = 0
		}

		fft(re, im)

		for k := 0; k < halfFFT; k++ {
			power[k] = re[k]*re[k] + im[k]*im[k]
		}

		mel := make([]float32, cfg.NumMels)
		for m := 0; m < cfg.NumMels; m++ {
			var sum float64
			for k, w := range e.melBank[m] {
				sum += w * power[k]
			}
			if sum < 1e-10 {
				sum = 1e-10
			}
			mel[m] = float32(math.Log(sum))
		}
		features[t] = mel
	}

	return features
}

// NumMels returns the configured number of mel bins.
func (e *Extractor) NumMels() int { return e.cfg.NumMels }

// Flatten converts [T][numMels] features into the flat row-major slice an
// ncnn Mat2D(numMels, T, data) expects.
func Flatten(features [][]float32) []float32 {
	if len(features) == 0 {
		return nil
	}
	cols := len(features[0])
	flat := make([]float32, len(features)*cols)
	for t, row := range features {
		copy(flat[t*cols:], row)
	}
	return flat
}

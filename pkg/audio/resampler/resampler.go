// Package resampler converts mono 16-bit PCM between sample rates.
//
// It is used when a capture device cannot open at 16 kHz directly (the
// stream is opened at the device rate and downsampled), and to match
// synthesized audio to the playback device rate when playing through
// PortAudio instead of an external player.
package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Rate is a streaming mono sample-rate converter. It is not safe for
// concurrent use; each audio path owns its own Rate.
type Rate struct {
	rs      resampling.Resampler
	inRate  int
	outRate int
}

// New creates a converter from inRate to outRate. Equal rates yield a
// passthrough converter.
func New(inRate, outRate int) (*Rate, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", inRate, outRate)
	}

	r := &Rate{inRate: inRate, outRate: outRate}
	if inRate == outRate {
		return r, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	r.rs = rs
	return r, nil
}

// InRate returns the input sample rate.
func (r *Rate) InRate() int { return r.inRate }

// OutRate returns the output sample rate.
func (r *Rate) OutRate() int { return r.outRate }

// Process converts a chunk of samples. The converter buffers internally,
// so output length varies call to call; over a stream the total output
// converges on len(input) * outRate / inRate.
func (r *Rate) Process(in []int16) ([]int16, error) {
	if r.rs == nil {
		out := make([]int16, len(in))
		copy(out, in)
		return out, nil
	}
	if len(in) == 0 {
		return nil, nil
	}

	input := make([]float64, len(in))
	for i, s := range in {
		input[i] = float64(s) / 32768.0
	}

	output, err := r.rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}

	out := make([]int16, len(output))
	for i, s := range output {
		switch {
		case s >= 1.0:
			out[i] = 32767
		case s <= -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767.0)
		}
	}
	return out, nil
}

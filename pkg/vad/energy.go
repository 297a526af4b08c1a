package vad

import "math"

// Energy is an RMS gate: a frame is speech when its root-mean-square
// amplitude rises clearly above an adaptive noise floor. It needs no model
// files and serves as the fallback detector.
type Energy struct {
	// MinThreshold is the RMS below which a frame is never speech,
	// regardless of the learned floor.
	MinThreshold float64

	floor      float64
	floorKnown bool
}

// NewEnergy returns an Energy detector with the default threshold.
func NewEnergy() *Energy {
	return &Energy{MinThreshold: 1000}
}

// IsSpeech implements [Detector]. It never fails.
func (e *Energy) IsSpeech(frame []int16) (bool, error) {
	rms := rms(frame)

	threshold := e.MinThreshold
	if e.floorKnown && e.floor*3 > threshold {
		threshold = e.floor * 3
	}
	speech := rms > threshold

	// Learn the floor from non-speech frames only.
	if !speech {
		if !e.floorKnown {
			e.floor = rms
			e.floorKnown = true
		} else {
			e.floor = e.floor*0.95 + rms*0.05
		}
	}
	return speech, nil
}

// Reset implements [Detector].
func (e *Energy) Reset() {
	e.floor = 0
	e.floorKnown = false
}

func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

var _ Detector = (*Energy)(nil)

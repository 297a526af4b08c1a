package capture

import (
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/pcm"
	"github.com/shshalom/voicesmith-mcp/pkg/audio/portaudio"
	"github.com/shshalom/voicesmith-mcp/pkg/audio/resampler"
)

// OpenMic opens the capture device at 16 kHz mono. Devices that refuse
// the low rate (common on USB interfaces that only do 44.1/48 kHz) are
// opened at 48 kHz instead and downsampled, so callers always see 16 kHz
// frames of the requested duration.
func OpenMic(device int, frame time.Duration) (Stream, error) {
	s, err := portaudio.NewInputStream(pcm.L16Mono16K, frame, portaudio.WithDevice(device))
	if err == nil {
		return s, nil
	}
	hw, hwErr := portaudio.NewInputStream(pcm.L16Mono48K, frame, portaudio.WithDevice(device))
	if hwErr != nil {
		// Report the native-rate failure; it is the interesting one.
		return nil, err
	}
	rs, rsErr := resampler.New(pcm.L16Mono48K.SampleRate(), pcm.L16Mono16K.SampleRate())
	if rsErr != nil {
		hw.Close()
		return nil, rsErr
	}
	return &downsampled{
		hw:   hw,
		rs:   rs,
		raw:  make([]int16, hw.FrameSamples()),
		want: pcm.L16Mono16K.SamplesIn(frame),
	}, nil
}

// downsampled adapts a 48 kHz hardware stream to the 16 kHz frames the
// detectors expect. The converter's output length drifts by a sample or
// two per call, so pending holds the overflow between reads.
type downsampled struct {
	hw      Stream
	rs      *resampler.Rate
	raw     []int16
	pending []int16
	want    int
}

func (d *downsampled) FrameSamples() int { return d.want }

func (d *downsampled) Format() pcm.Format { return pcm.L16Mono16K }

func (d *downsampled) ReadInto(buf []int16) error {
	for len(d.pending) < len(buf) {
		if err := d.hw.ReadInto(d.raw); err != nil {
			return err
		}
		out, err := d.rs.Process(d.raw)
		if err != nil {
			return err
		}
		d.pending = append(d.pending, out...)
	}
	n := copy(buf, d.pending)
	d.pending = d.pending[:copy(d.pending, d.pending[n:])]
	return nil
}

func (d *downsampled) Close() error { return d.hw.Close() }

package capture

import (
	"errors"
	"testing"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/pcm"
	"github.com/shshalom/voicesmith-mcp/pkg/audio/resampler"
	"github.com/shshalom/voicesmith-mcp/pkg/vad"
)

// fakeHWStream is a 48 kHz device stream delivering constant-valued
// frames, failing after a set number of reads when failAfter > 0.
type fakeHWStream struct {
	reads     int
	failAfter int
}

func (f *fakeHWStream) FrameSamples() int  { return pcm.L16Mono48K.SamplesIn(FrameDuration) }
func (f *fakeHWStream) Format() pcm.Format { return pcm.L16Mono48K }
func (f *fakeHWStream) Close() error       { return nil }

func (f *fakeHWStream) ReadInto(buf []int16) error {
	f.reads++
	if f.failAfter > 0 && f.reads > f.failAfter {
		return errors.New("device gone")
	}
	for i := range buf {
		buf[i] = 1000
	}
	return nil
}

func newDownsampled(t *testing.T, hw *fakeHWStream) *downsampled {
	t.Helper()
	rs, err := resampler.New(pcm.L16Mono48K.SampleRate(), pcm.L16Mono16K.SampleRate())
	if err != nil {
		t.Fatalf("resampler.New: %v", err)
	}
	return &downsampled{
		hw:   hw,
		rs:   rs,
		raw:  make([]int16, hw.FrameSamples()),
		want: pcm.L16Mono16K.SamplesIn(FrameDuration),
	}
}

func TestDownsampledDeliversFullFrames(t *testing.T) {
	hw := &fakeHWStream{}
	d := newDownsampled(t, hw)

	if got := d.FrameSamples(); got != vad.WindowSamples {
		t.Fatalf("FrameSamples = %d, want %d", got, vad.WindowSamples)
	}
	if d.Format() != pcm.L16Mono16K {
		t.Fatalf("Format = %v, want L16Mono16K", d.Format())
	}

	// The converter's per-call output length drifts, so repeated reads
	// exercise the pending-overflow carry. Every frame must come back
	// complete regardless.
	buf := make([]int16, d.FrameSamples())
	for i := 0; i < 20; i++ {
		if err := d.ReadInto(buf); err != nil {
			t.Fatalf("ReadInto #%d: %v", i, err)
		}
	}
	// 48k in at the same frame duration: one device read feeds roughly
	// one delivered frame, plus converter priming.
	if hw.reads < 20 || hw.reads > 30 {
		t.Fatalf("hardware reads = %d, want about 20 for 20 frames", hw.reads)
	}
}

func TestDownsampledPropagatesReadError(t *testing.T) {
	hw := &fakeHWStream{failAfter: 1}
	d := newDownsampled(t, hw)

	buf := make([]int16, d.FrameSamples())
	var err error
	for i := 0; i < 10; i++ {
		if err = d.ReadInto(buf); err != nil {
			break
		}
	}
	if err == nil {
		t.Fatal("ReadInto never surfaced the device error")
	}
}

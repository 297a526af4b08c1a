package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/pcm"
	"github.com/shshalom/voicesmith-mcp/pkg/vad"
)

// fakeStream hands out 512-sample frames, optionally pacing each read to
// simulate a real device, or blocking on a gate until released.
type fakeStream struct {
	pace   time.Duration
	gate   chan struct{}
	readAt int
	closed bool
	mu     sync.Mutex
}

func (f *fakeStream) FrameSamples() int  { return vad.WindowSamples }
func (f *fakeStream) Format() pcm.Format { return pcm.L16Mono16K }

func (f *fakeStream) ReadInto(buf []int16) error {
	if f.gate != nil {
		<-f.gate
	}
	if f.pace > 0 {
		time.Sleep(f.pace)
	}
	f.mu.Lock()
	f.readAt++
	v := int16(f.readAt)
	f.mu.Unlock()
	for i := range buf {
		buf[i] = v
	}
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// scriptDetector answers IsSpeech from a fixed script, repeating the last
// entry once exhausted.
type scriptDetector struct {
	script []bool
	err    error
	calls  int
	resets int
}

func (s *scriptDetector) IsSpeech(frame []int16) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	v := false
	if s.calls < len(s.script) {
		v = s.script[s.calls]
	} else if len(s.script) > 0 {
		v = s.script[len(s.script)-1]
	}
	s.calls++
	return v, nil
}

func (s *scriptDetector) Reset() { s.resets++ }

func newTestRecorder(t *testing.T, stream *fakeStream, det vad.Detector) *Recorder {
	t.Helper()
	open := func() (Stream, error) { return stream, nil }
	return NewRecorder(open, det, nil)
}

func TestRecordStopsOnSilenceAfterSpeech(t *testing.T) {
	det := &scriptDetector{script: []bool{true, true, false, false}}
	stream := &fakeStream{}
	r := newTestRecorder(t, stream, det)

	// Two silent frames are 64 ms; cut off right there.
	samples, err := r.Record(context.Background(), Params{Silence: 64 * time.Millisecond})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if want := 4 * vad.WindowSamples; len(samples) != want {
		t.Fatalf("recorded %d samples, want %d", len(samples), want)
	}
	if !stream.closed {
		t.Error("stream not closed after recording")
	}
}

func TestRecordKeepsLeadingSilence(t *testing.T) {
	det := &scriptDetector{script: []bool{false, false, true, false, false}}
	stream := &fakeStream{}
	r := newTestRecorder(t, stream, det)

	samples, err := r.Record(context.Background(), Params{Silence: 64 * time.Millisecond})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	// The two pre-speech frames stay in the recording.
	if want := 5 * vad.WindowSamples; len(samples) != want {
		t.Fatalf("recorded %d samples, want %d", len(samples), want)
	}
}

func TestRecordNoSpeechTimesOut(t *testing.T) {
	det := &scriptDetector{script: []bool{false}}
	stream := &fakeStream{pace: 5 * time.Millisecond}
	r := newTestRecorder(t, stream, det)

	samples, err := r.Record(context.Background(), Params{Timeout: 40 * time.Millisecond})
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Record err = %v, want ErrNoSpeech", err)
	}
	if samples != nil {
		t.Fatalf("got %d samples with ErrNoSpeech", len(samples))
	}
}

func TestRecordNoSpeechDeadlineFiresBeforeTimeout(t *testing.T) {
	det := &scriptDetector{script: []bool{false}}
	stream := &fakeStream{pace: 5 * time.Millisecond}
	r := newTestRecorder(t, stream, det)

	start := time.Now()
	_, err := r.Record(context.Background(), Params{
		Timeout:  time.Second,
		NoSpeech: 30 * time.Millisecond,
	})
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("Record err = %v, want ErrNoSpeech", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("gave up after %v, want well before the 1s timeout", elapsed)
	}
}

func TestRecordTimeoutMidSpeechKeepsAudio(t *testing.T) {
	det := &scriptDetector{script: []bool{true}}
	stream := &fakeStream{pace: 5 * time.Millisecond}
	r := newTestRecorder(t, stream, det)

	samples, err := r.Record(context.Background(), Params{Timeout: 40 * time.Millisecond})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(samples) == 0 {
		t.Fatal("timeout mid-speech returned no audio")
	}
}

func TestRecordCancelled(t *testing.T) {
	det := &scriptDetector{script: []bool{false}}
	stream := &fakeStream{pace: 5 * time.Millisecond}
	r := newTestRecorder(t, stream, det)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := r.Record(ctx, Params{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Record err = %v, want context.Canceled", err)
	}
}

func TestRecordBusy(t *testing.T) {
	gate := make(chan struct{})
	det := &scriptDetector{script: []bool{false}}
	stream := &fakeStream{gate: gate}
	r := newTestRecorder(t, stream, det)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := r.Record(ctx, Params{})
		done <- err
	}()

	deadline := time.Now().Add(time.Second)
	for !r.Recording() {
		if time.Now().After(deadline) {
			t.Fatal("first recording never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := r.Record(context.Background(), Params{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Record err = %v, want ErrBusy", err)
	}

	cancel()
	close(gate)
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("first Record err = %v, want context.Canceled", err)
	}
	if r.Recording() {
		t.Error("Recording() still true after both returned")
	}
}

func TestRecordOpenError(t *testing.T) {
	boom := errors.New("device unavailable")
	r := NewRecorder(func() (Stream, error) { return nil, boom }, &scriptDetector{}, nil)

	_, err := r.Record(context.Background(), Params{})
	if !errors.Is(err, boom) {
		t.Fatalf("Record err = %v, want wrapped open error", err)
	}
}

func TestRecordResetsDetectorPerEpisode(t *testing.T) {
	det := &scriptDetector{script: []bool{true, false, false}}
	stream := &fakeStream{}
	r := newTestRecorder(t, stream, det)

	for i := 0; i < 2; i++ {
		if _, err := r.Record(context.Background(), Params{Silence: 64 * time.Millisecond}); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
		det.calls = 0
	}
	if det.resets != 2 {
		t.Fatalf("detector reset %d times, want 2", det.resets)
	}
}

func TestRecordVADErrorPropagates(t *testing.T) {
	boom := errors.New("graph failure")
	det := &scriptDetector{err: boom}
	stream := &fakeStream{}
	r := newTestRecorder(t, stream, det)

	_, err := r.Record(context.Background(), Params{})
	if !errors.Is(err, boom) {
		t.Fatalf("Record err = %v, want wrapped vad error", err)
	}
}

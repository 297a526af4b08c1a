package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/player"
)

// fakeSynth renders each chunk as a fixed-length clip and records calls.
type fakeSynth struct {
	mu     sync.Mutex
	chunks []string
	err    error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*Synthesis, error) {
	f.mu.Lock()
	f.chunks = append(f.chunks, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &Synthesis{
		Samples:     make([]int16, 240), // 10ms at 24k
		SampleRate:  24000,
		SynthesisMs: 5,
	}, nil
}

func (f *fakeSynth) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.chunks...)
}

// fakePlayback records played clips and can fail or report Stop.
type fakePlayback struct {
	mu      sync.Mutex
	played  int
	errs    []error // per-call errors, nil-padded
	stopped bool
	block   chan struct{} // when set, Play waits until closed
}

func (f *fakePlayback) Play(ctx context.Context, samples []int16, rate int) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.played
	f.played++
	if i < len(f.errs) {
		return f.errs[i]
	}
	return nil
}

func (f *fakePlayback) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	wasPlaying := f.stopped
	return wasPlaying
}

func (f *fakePlayback) playedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.played
}

func newTestScheduler(t *testing.T, synth Synthesizer, pb Playback) *Scheduler {
	t.Helper()
	return NewScheduler(synth, pb, WithMaxChunk(40))
}

func TestSpeakBlockingPlaysAllChunksInOrder(t *testing.T) {
	synth := &fakeSynth{}
	pb := &fakePlayback{}
	s := newTestScheduler(t, synth, pb)

	text := "First sentence here. Second sentence here. Third sentence here."
	res := s.Speak(context.Background(), Request{Text: text, VoiceID: "am_eric", Blocking: true})
	if !res.Success {
		t.Fatalf("Speak = %+v, want success", res)
	}
	if res.Queued {
		t.Fatal("blocking speak reported queued")
	}

	chunks := synth.calls()
	if len(chunks) < 2 {
		t.Fatalf("synthesized %d chunks, want several", len(chunks))
	}
	if strings.Join(chunks, " ") != text {
		t.Fatalf("chunks %q do not reassemble input", chunks)
	}
	if pb.playedCount() != len(chunks) {
		t.Fatalf("played %d clips for %d chunks", pb.playedCount(), len(chunks))
	}
	if res.SynthesisMs != float64(5*len(chunks)) {
		t.Fatalf("SynthesisMs = %v, want %v", res.SynthesisMs, 5*len(chunks))
	}
}

func TestSpeakNonBlockingQueues(t *testing.T) {
	synth := &fakeSynth{}
	gate := make(chan struct{})
	pb := &fakePlayback{block: gate}
	s := newTestScheduler(t, synth, pb)

	start := time.Now()
	res := s.Speak(context.Background(), Request{Text: "Hello.", VoiceID: "am_eric"})
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("non-blocking Speak took %v", elapsed)
	}
	if !res.Success || !res.Queued {
		t.Fatalf("Speak = %+v, want queued success", res)
	}
	if res.DurationMs != 0 {
		t.Fatalf("queued result carries timings: %+v", res)
	}

	close(gate)
	deadline := time.Now().Add(2 * time.Second)
	for pb.playedCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("queued speak never played")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSpeakPlaybackFailureStopsChunkLoop(t *testing.T) {
	synth := &fakeSynth{}
	pb := &fakePlayback{errs: []error{errors.New("player: device gone")}}
	s := newTestScheduler(t, synth, pb)

	text := "First sentence here. Second sentence here. Third sentence here."
	res := s.Speak(context.Background(), Request{Text: text, VoiceID: "am_eric", Blocking: true})
	if res.Success {
		t.Fatalf("Speak = %+v, want failure", res)
	}
	if res.Error == "" {
		t.Fatal("failure result has no error message")
	}
	if pb.playedCount() != 1 {
		t.Fatalf("played %d clips after failure, want 1", pb.playedCount())
	}
	if len(synth.calls()) != 1 {
		t.Fatalf("synthesized %d chunks after failure, want 1", len(synth.calls()))
	}
}

func TestSpeakStoppedIsNotFailure(t *testing.T) {
	synth := &fakeSynth{}
	pb := &fakePlayback{errs: []error{player.ErrStopped}}
	s := newTestScheduler(t, synth, pb)

	text := "First sentence here. Second sentence here. Third sentence here."
	res := s.Speak(context.Background(), Request{Text: text, VoiceID: "am_eric", Blocking: true})
	if !res.Success || !res.Stopped {
		t.Fatalf("Speak = %+v, want stopped success", res)
	}
	if pb.playedCount() != 1 {
		t.Fatalf("played %d clips after stop, want 1", pb.playedCount())
	}
}

func TestSpeakSynthesisError(t *testing.T) {
	synth := &fakeSynth{err: errors.New("speech: synthesize: connection refused")}
	pb := &fakePlayback{}
	s := newTestScheduler(t, synth, pb)

	res := s.Speak(context.Background(), Request{Text: "Hello.", VoiceID: "am_eric", Blocking: true})
	if res.Success {
		t.Fatalf("Speak = %+v, want failure", res)
	}
	if pb.playedCount() != 0 {
		t.Fatal("played a clip despite synthesis failure")
	}
}

func TestSpeakNoEngine(t *testing.T) {
	s := NewScheduler(nil, &fakePlayback{})
	res := s.Speak(context.Background(), Request{Text: "Hello.", VoiceID: "am_eric", Blocking: true})
	if res.Success {
		t.Fatalf("Speak = %+v, want degraded failure", res)
	}
	if !strings.Contains(res.Error, "engine unavailable") {
		t.Fatalf("Error = %q, want engine unavailable", res.Error)
	}
}

func TestConcurrentSpeaksSerialize(t *testing.T) {
	synth := &fakeSynth{}
	pb := &fakePlayback{}
	s := newTestScheduler(t, synth, pb)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := s.Speak(context.Background(), Request{Text: "One line.", VoiceID: "am_eric", Blocking: true})
			if !res.Success {
				t.Errorf("Speak = %+v", res)
			}
		}()
	}
	wg.Wait()
	if pb.playedCount() != 4 {
		t.Fatalf("played %d clips, want 4", pb.playedCount())
	}
}

package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/audio/pcm"
	"github.com/shshalom/voicesmith-mcp/pkg/capture"
	"github.com/shshalom/voicesmith-mcp/pkg/config"
	"github.com/shshalom/voicesmith-mcp/pkg/session"
	"github.com/shshalom/voicesmith-mcp/pkg/speech"
	"github.com/shshalom/voicesmith-mcp/pkg/voice"
	"github.com/shshalom/voicesmith-mcp/pkg/wake"
)

type fakeSynth struct{ fail bool }

func (f fakeSynth) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*speech.Synthesis, error) {
	if f.fail {
		return nil, speech.ErrNoEngine
	}
	return &speech.Synthesis{Samples: make([]int16, 240), SampleRate: 24000, SynthesisMs: 5}, nil
}

type fakePlayback struct{ played int }

func (f *fakePlayback) Play(ctx context.Context, samples []int16, rate int) error {
	f.played++
	return nil
}

func (f *fakePlayback) Stop() bool { return false }

type fakeTrans struct{ text string }

func (f fakeTrans) Transcribe(ctx context.Context, samples []int16, rate int) (*speech.Transcription, error) {
	return &speech.Transcription{Text: f.text, Confidence: 0.92, TranscriptionMs: 3}, nil
}

// fakeStream hands out zeroed frames forever.
type fakeStream struct{ frames int }

func (s *fakeStream) ReadInto(buf []int16) error {
	s.frames++
	time.Sleep(time.Millisecond)
	return nil
}
func (s *fakeStream) FrameSamples() int  { return 512 }
func (s *fakeStream) Format() pcm.Format { return pcm.L16Mono16K }
func (s *fakeStream) Close() error       { return nil }

// scriptDet answers IsSpeech from a script, then false forever.
type scriptDet struct {
	script []bool
	i      int
}

func (d *scriptDet) IsSpeech(frame []int16) (bool, error) {
	if d.i < len(d.script) {
		v := d.script[d.i]
		d.i++
		return v, nil
	}
	return false, nil
}
func (d *scriptDet) Reset() { d.i = 0 }

func newTestDaemon(t *testing.T, det *scriptDet, transcript string) *Daemon {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	cfg, err := config.LoadPath(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadPath() = %v", err)
	}

	store := session.NewStore(filepath.Join(t.TempDir(), "sessions.json"))
	open := func() (capture.Stream, error) { return &fakeStream{}, nil }
	play := &fakePlayback{}

	d := &Daemon{
		cfg:      cfg,
		log:      log,
		store:    store,
		reg:      session.NewRegistry(store, session.WithLogger(log)),
		assign:   voice.NewAssignments(nil, log),
		sched:    speech.NewScheduler(fakeSynth{}, play, speech.WithSchedulerLogger(log)),
		trans:    fakeTrans{text: transcript},
		rec:      capture.NewRecorder(open, det, log),
		hub:      newHub(log),
		started:  time.Now(),
		speakOK:  true,
		listenOK: true,
	}
	d.arb = wake.New(
		func(frame time.Duration) (capture.Stream, error) { return &fakeStream{}, nil },
		nil, det, d.trans, wake.NewRouter(d.reg, nil, log), wake.WithLogger(log))
	d.setSelf(session.Record{Name: "Eric", Voice: "am_eric", Port: 7865, PID: 4242})
	d.lastTool.Store(time.Now().UnixNano())
	return d
}

func TestStatusContract(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	srv := httptest.NewServer(d.bridgeHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// These six fields are what HTTPProber and external callers read.
	for _, key := range []string{"ready", "name", "port", "mcp_connected", "uptime_s", "last_tool_call_age_s"} {
		if _, ok := body[key]; !ok {
			t.Errorf("status missing %q: %v", key, body)
		}
	}
	if body["ready"] != true {
		t.Errorf("ready = %v, want true", body["ready"])
	}
	if body["name"] != "Eric" {
		t.Errorf("name = %v, want Eric", body["name"])
	}
}

func TestSpeakEndpoint(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	srv := httptest.NewServer(d.bridgeHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/speak", "application/json",
		strings.NewReader(`{"text":"Hello there.","block":true}`))
	if err != nil {
		t.Fatalf("POST /speak: %v", err)
	}
	defer resp.Body.Close()

	var res speech.SpeakResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Success {
		t.Fatalf("Success = false, error %q", res.Error)
	}
	if res.Voice != "am_eric" {
		t.Errorf("Voice = %q, want session voice am_eric", res.Voice)
	}
}

func TestSpeakRejectsMissingText(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	srv := httptest.NewServer(d.bridgeHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/speak", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /speak: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSpeakUnknownNameAutoAssigns(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")

	// A name outside the catalog still speaks: it gets a hashed voice
	// from the pool, and the same name maps to the same voice after.
	first := d.Speak(context.Background(), SpeakParams{Text: "hi", Voice: "Zelda", Block: true})
	if !first.Success {
		t.Fatalf("Success = false, error %q", first.Error)
	}
	if !voice.ValidID(first.Voice) {
		t.Fatalf("Voice = %q, not a catalog id", first.Voice)
	}
	if !first.AutoAssign {
		t.Error("AutoAssign = false, want true for an unknown name")
	}

	again := d.Speak(context.Background(), SpeakParams{Text: "hi again", Voice: "Zelda", Block: true})
	if again.Voice != first.Voice {
		t.Errorf("second resolve = %q, want %q", again.Voice, first.Voice)
	}
}

func TestSpeakResolvesDisplayName(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	res := d.Speak(context.Background(), SpeakParams{Text: "hi", Voice: "Nova", Block: true})
	if !res.Success {
		t.Fatalf("Success = false, error %q", res.Error)
	}
	if res.Voice != "af_nova" {
		t.Errorf("Voice = %q, want af_nova", res.Voice)
	}
}

func TestListenTranscribes(t *testing.T) {
	// Three speech frames, then silence until the cutoff.
	det := &scriptDet{script: []bool{true, true, true}}
	d := newTestDaemon(t, det, "hello world")

	res := d.Listen(context.Background(), ListenParams{TimeoutS: 2, SilenceS: 0.1})
	if !res.Success {
		t.Fatalf("Success = false, error %q", res.Error)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q, want hello world", res.Text)
	}
	if res.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", res.Confidence)
	}
}

func TestListenNoSpeechTimesOut(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	res := d.Listen(context.Background(), ListenParams{TimeoutS: 0.1})
	if res.Success {
		t.Fatal("Success = true with no speech")
	}
	if !strings.Contains(res.Error, "timeout") {
		t.Errorf("Error = %q, want timeout class", res.Error)
	}
}

func TestListenBusyRejectedNotQueued(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	d.listenBusy.Store(true)

	start := time.Now()
	res := d.Listen(context.Background(), ListenParams{TimeoutS: 5})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("busy listen took %v, want immediate rejection", elapsed)
	}
	if !strings.Contains(res.Error, "busy") {
		t.Errorf("Error = %q, want busy class", res.Error)
	}
}

func TestListenCancelled(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan ListenResult, 1)
	go func() { done <- d.Listen(ctx, ListenParams{TimeoutS: 30}) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		if res.Success {
			t.Fatal("Success = true after cancel")
		}
		if !strings.Contains(res.Error, "cancelled") {
			t.Errorf("Error = %q, want cancelled class", res.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return after cancel")
	}
}

func TestStopAllInterruptsListen(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")

	done := make(chan ListenResult, 1)
	go func() { done <- d.Listen(context.Background(), ListenParams{TimeoutS: 30}) }()
	time.Sleep(50 * time.Millisecond)

	if !d.StopAll() {
		t.Error("StopAll() = false with a listen in flight")
	}
	select {
	case res := <-done:
		if !strings.Contains(res.Error, "cancelled") {
			t.Errorf("Error = %q, want cancelled class", res.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("listen did not return after StopAll")
	}
}

func TestCorrelationEndpoint(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	if _, err := d.reg.Register(context.Background(), "Eric", "am_eric", 7865, ""); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	srv := httptest.NewServer(d.bridgeHandler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/correlation", "application/json",
		strings.NewReader(`{"session_id":"conv-42"}`))
	if err != nil {
		t.Fatalf("POST /correlation: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var rec session.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.SessionID == nil || *rec.SessionID != "conv-42" {
		t.Errorf("SessionID = %v, want conv-42", rec.SessionID)
	}
}

func TestClientRoundTrip(t *testing.T) {
	d := newTestDaemon(t, &scriptDet{}, "")
	srv := httptest.NewServer(d.bridgeHandler())
	defer srv.Close()

	c := &Client{base: srv.URL, hc: srv.Client()}

	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() = %v", err)
	}
	if st.Name != "Eric" {
		t.Errorf("Name = %q, want Eric", st.Name)
	}

	out, err := c.Speak(context.Background(), SpeakParams{Text: "Hi.", Block: true})
	if err != nil {
		t.Fatalf("Speak() = %v", err)
	}
	if !out.Success {
		t.Fatalf("Speak success = false, error %q", out.Error)
	}
}

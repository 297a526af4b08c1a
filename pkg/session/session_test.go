package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/voice"
)

// fakeLiveness tracks which pids count as running.
type fakeLiveness struct {
	mu     sync.Mutex
	live   map[int]bool
	killed []int
}

func (f *fakeLiveness) isAlive(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[pid]
}

func (f *fakeLiveness) set(pid int, alive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[pid] = alive
}

func (f *fakeLiveness) kill(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
}

type fakeProber struct {
	stale map[int]bool
}

func (p fakeProber) Healthy(r Record) bool { return !p.stale[r.PID] }

func newTestRegistry(t *testing.T, store *Store, selfPID int, lv *fakeLiveness) *Registry {
	t.Helper()
	r := NewRegistry(store,
		WithProber(nil),
		WithGrace(20*time.Millisecond),
	)
	r.self = selfPID
	r.alive = lv.isAlive
	r.kill = lv.kill
	lv.set(selfPID, true)
	return r
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "sessions.json"))
}

func TestRegisterFirstSession(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{}}
	reg := newTestRegistry(t, store, 100, lv)

	rec, err := reg.Register(context.Background(), "Eric", "am_eric", 7865, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if rec.Name != "Eric" || rec.Voice != "am_eric" || rec.Port != 7865 || rec.PID != 100 {
		t.Fatalf("Register = %+v", rec)
	}
	if rec.SessionID != nil {
		t.Fatalf("SessionID = %v, want nil at registration", *rec.SessionID)
	}
}

func TestRegisterFallbackDeterministic(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{999: true, 998: true}}
	seed := newTestRegistry(t, store, 999, lv)
	if _, err := seed.Register(context.Background(), "Eric", "am_eric", 7865, ""); err != nil {
		t.Fatalf("seed Register: %v", err)
	}
	seed2 := newTestRegistry(t, store, 998, lv)
	if _, err := seed2.Register(context.Background(), "Adam", "am_adam", 7865, ""); err != nil {
		t.Fatalf("seed Register: %v", err)
	}

	reg := newTestRegistry(t, store, 100, lv)
	rec, err := reg.Register(context.Background(), "Eric", "am_eric", 7865, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	// Eric and Adam are taken; the priority walk lands on Echo.
	if rec.Name != "Echo" || rec.Voice != "am_echo" {
		t.Fatalf("fallback = %s/%s, want Echo/am_echo", rec.Name, rec.Voice)
	}
	if rec.Port != 7867 {
		t.Fatalf("port = %d, want 7867 (lowest free above two live sessions)", rec.Port)
	}
}

func TestFallbackIdentityExhausted(t *testing.T) {
	taken := make(map[string]bool)
	for _, p := range voice.Priority {
		taken[p.Name] = true
	}
	for _, v := range voice.Catalog {
		taken[v.Name()] = true
	}

	// Every curated identity taken: the pick hashes into the full
	// catalog instead of echoing the caller's (taken) preference back.
	name, id := fallbackIdentity(taken, "Eric")
	if !voice.ValidID(id) {
		t.Fatalf("exhausted fallback voice = %q, not a catalog id", id)
	}
	v, _ := voice.Lookup(id)
	if name != v.Name() {
		t.Fatalf("name = %q, want %q (display name of %s)", name, v.Name(), id)
	}

	name2, id2 := fallbackIdentity(taken, "Eric")
	if name2 != name || id2 != id {
		t.Fatalf("second pick = %s/%s, want %s/%s (must be stable)", name2, id2, name, id)
	}
}

func TestRegisterConcurrentUnique(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{}}

	const n = 4
	recs := make([]Record, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		reg := newTestRegistry(t, store, 200+i, lv)
		wg.Add(1)
		go func(i int, reg *Registry) {
			defer wg.Done()
			rec, err := reg.Register(context.Background(), "Eric", "am_eric", 7865, "")
			if err != nil {
				t.Errorf("Register %d: %v", i, err)
				return
			}
			recs[i] = rec
		}(i, reg)
	}
	wg.Wait()

	names := map[string]bool{}
	ports := map[int]bool{}
	for _, rec := range recs {
		if names[rec.Name] {
			t.Errorf("duplicate name %q", rec.Name)
		}
		if ports[rec.Port] {
			t.Errorf("duplicate port %d", rec.Port)
		}
		names[rec.Name] = true
		ports[rec.Port] = true
	}
}

func TestRegisterReclaimsDuringGrace(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{900: true}}
	holder := newTestRegistry(t, store, 900, lv)
	if _, err := holder.Register(context.Background(), "Eric", "am_eric", 7865, ""); err != nil {
		t.Fatalf("holder Register: %v", err)
	}

	reg := newTestRegistry(t, store, 100, lv)
	reg.grace = 100 * time.Millisecond

	// Kill the holder while the new session waits out the grace period.
	go func() {
		time.Sleep(30 * time.Millisecond)
		lv.set(900, false)
	}()

	rec, err := reg.Register(context.Background(), "Eric", "am_eric", 7865, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if rec.Name != "Eric" {
		t.Fatalf("name = %q, want preferred name reclaimed after grace", rec.Name)
	}
	if rec.Port != 7865 {
		t.Fatalf("port = %d, want 7865 freed by the dead holder", rec.Port)
	}
}

func TestRegisterContextCancelledDuringGrace(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{900: true}}
	holder := newTestRegistry(t, store, 900, lv)
	if _, err := holder.Register(context.Background(), "Eric", "am_eric", 7865, ""); err != nil {
		t.Fatalf("holder Register: %v", err)
	}

	reg := newTestRegistry(t, store, 100, lv)
	reg.grace = 10 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := reg.Register(ctx, "Eric", "am_eric", 7865, ""); err == nil {
		t.Fatal("Register = nil error, want context error")
	}
}

func TestListActivePrunesDead(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{300: true, 301: true}}
	a := newTestRegistry(t, store, 300, lv)
	b := newTestRegistry(t, store, 301, lv)
	if _, err := a.Register(context.Background(), "Eric", "am_eric", 7865, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Register(context.Background(), "Nova", "af_nova", 7865, ""); err != nil {
		t.Fatal(err)
	}

	lv.set(301, false)
	active, err := a.ListActive()
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].Name != "Eric" {
		t.Fatalf("active = %+v, want only Eric", active)
	}

	// The prune must have been persisted.
	if err := store.lock(); err != nil {
		t.Fatal(err)
	}
	onDisk := store.read()
	store.unlock()
	if len(onDisk) != 1 {
		t.Fatalf("on disk = %d records, want 1 after prune", len(onDisk))
	}
}

func TestPruneKillsOrphans(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{400: true}}
	seed := newTestRegistry(t, store, 400, lv)
	if _, err := seed.Register(context.Background(), "Eric", "am_eric", 7865, ""); err != nil {
		t.Fatal(err)
	}

	reg := newTestRegistry(t, store, 100, lv)
	reg.prober = fakeProber{stale: map[int]bool{400: true}}
	active, err := reg.ListActive()
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active = %+v, want orphan removed", active)
	}
	lv.mu.Lock()
	killed := append([]int(nil), lv.killed...)
	lv.mu.Unlock()
	if len(killed) != 1 || killed[0] != 400 {
		t.Fatalf("killed = %v, want [400]", killed)
	}
}

func TestUnregisterRemovesOwnRecord(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{500: true, 501: true}}
	a := newTestRegistry(t, store, 500, lv)
	b := newTestRegistry(t, store, 501, lv)
	if _, err := a.Register(context.Background(), "Eric", "am_eric", 7865, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Register(context.Background(), "Nova", "af_nova", 7865, ""); err != nil {
		t.Fatal(err)
	}

	a.Unregister()
	active, err := b.ListActive()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Name != "Nova" {
		t.Fatalf("active = %+v, want only Nova", active)
	}
}

func TestUpdateCorrelationAdoptsSibling(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{600: true, 601: true}}
	sib := newTestRegistry(t, store, 600, lv)
	own := newTestRegistry(t, store, 601, lv)
	if _, err := sib.Register(context.Background(), "Nova", "af_nova", 7865, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := own.Register(context.Background(), "Eric", "am_eric", 7865, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := sib.UpdateCorrelation("conv-42"); err != nil {
		t.Fatal(err)
	}

	rec, err := own.UpdateCorrelation("conv-42")
	if err != nil {
		t.Fatalf("UpdateCorrelation: %v", err)
	}
	if rec == nil {
		t.Fatal("UpdateCorrelation = nil record")
	}
	if rec.Name != "Nova" || rec.Voice != "af_nova" {
		t.Fatalf("adopted = %s/%s, want Nova/af_nova", rec.Name, rec.Voice)
	}
	if rec.SessionID == nil || *rec.SessionID != "conv-42" {
		t.Fatalf("SessionID = %v, want conv-42", rec.SessionID)
	}
}

func TestUpdateCorrelationNoOwnRecord(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{}}
	reg := newTestRegistry(t, store, 700, lv)
	rec, err := reg.UpdateCorrelation("conv-1")
	if err != nil {
		t.Fatalf("UpdateCorrelation: %v", err)
	}
	if rec != nil {
		t.Fatalf("UpdateCorrelation = %+v, want nil for unregistered process", rec)
	}
}

func TestStoreCorruptFileReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := NewStore(path)
	if err := store.lock(); err != nil {
		t.Fatal(err)
	}
	defer store.unlock()
	if recs := store.read(); len(recs) != 0 {
		t.Fatalf("Read corrupt = %d records, want 0", len(recs))
	}
}

func TestWireFormat(t *testing.T) {
	store := newTestStore(t)
	lv := &fakeLiveness{live: map[int]bool{}}
	reg := newTestRegistry(t, store, 800, lv)
	t.Setenv("VOICESMITH_TMUX", "dev:1")

	rec, err := reg.Register(context.Background(), "Eric", "am_eric", 7865, "")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.HasTerminal() {
		t.Fatal("HasTerminal = false, want tmux tag from env")
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("store file is not JSON: %v", err)
	}
	var sessions []map[string]any
	if err := json.Unmarshal(doc["sessions"], &sessions); err != nil {
		t.Fatalf("sessions key: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	for _, key := range []string{"name", "voice", "port", "pid", "session_id", "tmux_session", "started_at"} {
		if _, ok := sessions[0][key]; !ok {
			t.Errorf("missing wire field %q", key)
		}
	}
	if sessions[0]["session_id"] != nil {
		t.Errorf("session_id = %v, want JSON null", sessions[0]["session_id"])
	}
	if sessions[0]["tmux_session"] != "dev:1" {
		t.Errorf("tmux_session = %v, want dev:1", sessions[0]["tmux_session"])
	}
	if _, err := time.Parse(time.RFC3339, sessions[0]["started_at"].(string)); err != nil {
		t.Errorf("started_at not RFC3339: %v", err)
	}
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/voice"
)

// Registry manages this process's entry in the shared session table:
// claiming a unique name, voice and port at startup, pruning stale
// siblings along the way, and releasing the entry at shutdown.
type Registry struct {
	store  *Store
	prober Prober
	log    *slog.Logger
	grace  time.Duration
	self   int

	// liveness hooks, swapped in tests
	alive func(pid int) bool
	kill  func(pid int)
}

// Option configures a Registry.
type Option func(*Registry)

// WithProber replaces the staleness probe (default ParentProber).
func WithProber(p Prober) Option {
	return func(r *Registry) { r.prober = p }
}

// WithGrace sets how long Register waits for a shutting-down holder of
// the preferred name before falling back (default 2s).
func WithGrace(d time.Duration) Option {
	return func(r *Registry) { r.grace = d }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates a registry for this process over the shared store.
func NewRegistry(store *Store, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		prober: ParentProber{},
		log:    slog.Default(),
		grace:  2 * time.Second,
		self:   os.Getpid(),
		alive:  pidAlive,
		kill:   terminate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register claims a session entry and persists it. If the preferred name
// is held by a live session, it waits one grace period for that session
// to finish shutting down, then falls back to the first untaken name in
// the catalog priority order. The port is the lowest free port at or
// above basePort. An empty tmuxSession falls back to $VOICESMITH_TMUX.
func (r *Registry) Register(ctx context.Context, preferredName, preferredVoice string, basePort int, tmuxSession string) (Record, error) {
	if err := r.store.lock(); err != nil {
		return Record{}, err
	}
	locked := true
	defer func() {
		if locked {
			r.store.unlock()
		}
	}()

	recs := r.prune(r.store.read())
	taken := takenNames(recs)

	if taken[preferredName] {
		// The holder may be an old instance mid-shutdown. Release the
		// lock, give it a moment, then re-examine.
		if err := r.store.unlock(); err != nil {
			return Record{}, err
		}
		locked = false
		if err := r.waitGrace(ctx); err != nil {
			return Record{}, err
		}
		if err := r.store.lock(); err != nil {
			return Record{}, err
		}
		locked = true
		recs = r.prune(r.store.read())
		if err := r.store.write(recs); err != nil {
			return Record{}, err
		}
		taken = takenNames(recs)
	}

	name, voiceID := preferredName, preferredVoice
	if taken[preferredName] {
		name, voiceID = fallbackIdentity(taken, preferredName)
		r.log.Warn("session name already active, using fallback",
			"preferred", preferredName, "name", name, "voice", voiceID)
	}

	if tmuxSession == "" {
		tmuxSession = os.Getenv("VOICESMITH_TMUX")
	}

	rec := Record{
		Name:      name,
		Voice:     voiceID,
		Port:      freePort(recs, basePort),
		PID:       r.self,
		StartedAt: time.Now().UTC(),
	}
	if tmuxSession != "" {
		rec.TmuxSession = &tmuxSession
	}

	recs = append(recs, rec)
	if err := r.store.write(recs); err != nil {
		return Record{}, err
	}
	r.log.Info("session registered", "name", rec.Name, "voice", rec.Voice, "port", rec.Port)
	return rec, nil
}

// Unregister removes this process's entry. Best effort: failures are
// logged, never fatal, since the next prune reclaims the entry anyway.
func (r *Registry) Unregister() {
	err := r.store.WithLock(func(recs []Record) ([]Record, bool) {
		kept := make([]Record, 0, len(recs))
		for _, rec := range recs {
			if rec.PID != r.self {
				kept = append(kept, rec)
			}
		}
		return kept, true
	})
	if err != nil {
		r.log.Warn("session unregister failed", "err", err)
		return
	}
	r.log.Info("session unregistered")
}

// UpdateCorrelation sets this process's correlation id and reconciles
// identity with siblings: if a live record already carries the same id,
// its name and voice are adopted (one conversation, one voice). Returns
// the updated record, or nil if this process has no entry.
func (r *Registry) UpdateCorrelation(sessionID string) (*Record, error) {
	var out *Record
	err := r.store.WithLock(func(recs []Record) ([]Record, bool) {
		recs = r.prune(recs)

		var own *Record
		for i := range recs {
			if recs[i].PID == r.self {
				own = &recs[i]
				break
			}
		}
		if own == nil {
			return recs, false
		}

		own.SessionID = &sessionID
		for i := range recs {
			sib := &recs[i]
			if sib.PID == r.self || sib.SessionID == nil || *sib.SessionID != sessionID {
				continue
			}
			if sib.Name != own.Name {
				r.log.Info("adopting sibling identity",
					"from", own.Name, "to", sib.Name, "session_id", sessionID)
				own.Name = sib.Name
				own.Voice = sib.Voice
			}
			break
		}

		cp := *own
		out = &cp
		return recs, true
	})
	if err != nil {
		return nil, fmt.Errorf("session: update correlation: %w", err)
	}
	return out, nil
}

// ListActive prunes stale records and returns the live ones. The pruned
// list is persisted only when something was removed.
func (r *Registry) ListActive() ([]Record, error) {
	var out []Record
	err := r.store.WithLock(func(recs []Record) ([]Record, bool) {
		alive := r.prune(recs)
		out = alive
		return alive, len(alive) != len(recs)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// prune drops dead and orphaned records. Orphaned processes (alive but
// failing the health probe) get a best-effort SIGTERM so they stop
// holding the microphone.
func (r *Registry) prune(recs []Record) []Record {
	alive := make([]Record, 0, len(recs))
	for _, rec := range recs {
		switch {
		case rec.PID == r.self:
			alive = append(alive, rec)
		case !r.alive(rec.PID):
			r.log.Info("removed dead session", "name", rec.Name, "pid", rec.PID)
		case r.prober != nil && !r.prober.Healthy(rec):
			r.log.Info("removed orphaned session", "name", rec.Name, "pid", rec.PID)
			r.kill(rec.PID)
		default:
			alive = append(alive, rec)
		}
	}
	return alive
}

func (r *Registry) waitGrace(ctx context.Context) error {
	t := time.NewTimer(r.grace)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func takenNames(recs []Record) map[string]bool {
	taken := make(map[string]bool, len(recs))
	for _, rec := range recs {
		taken[rec.Name] = true
	}
	return taken
}

// fallbackIdentity walks the catalog priority order and returns the first
// untaken display name with its voice. With 54 voices exhaustion cannot
// happen in practice; if it does, a stable hash of the preferred name
// picks from the full catalog (identities get reused at that point).
func fallbackIdentity(taken map[string]bool, preferred string) (string, string) {
	for _, p := range voice.Priority {
		if !taken[p.Name] {
			return p.Name, p.ID
		}
	}
	v := voice.HashedPick(preferred)
	return v.Name(), v.ID
}

// freePort returns the lowest port at or above base not held by any
// record.
func freePort(recs []Record, base int) int {
	used := make(map[int]bool, len(recs))
	for _, rec := range recs {
		used[rec.Port] = true
	}
	port := base
	for used[port] {
		port++
	}
	return port
}

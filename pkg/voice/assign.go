package voice

import (
	"errors"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownVoice is returned when assigning a voice id that is not in
// the catalog.
var ErrUnknownVoice = errors.New("voice: unknown voice id")

// Assignments maps agent display names to voice ids, with auto-discovery
// for names it has never seen. The map is persisted in the config file
// between runs; mutation is in-memory, the daemon saves snapshots.
type Assignments struct {
	mu  sync.Mutex
	m   map[string]string
	log *slog.Logger
}

// NewAssignments seeds the table from a persisted map (may be nil).
func NewAssignments(initial map[string]string, log *slog.Logger) *Assignments {
	if log == nil {
		log = slog.Default()
	}
	m := make(map[string]string, len(initial))
	for k, v := range initial {
		m[k] = v
	}
	return &Assignments{m: m, log: log}
}

// Get returns the voice id for name, assigning one if needed. The bool
// reports whether this call auto-assigned.
//
// Lookup order: existing entry; display-name match against the catalog if
// that voice is unassigned; stable hash into the unassigned pool; pool
// exhausted, stable hash into the full catalog (voices get reused).
func (a *Assignments) Get(name string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.m[name]; ok {
		return id, false
	}

	if id, ok := IDForName(name); ok && !a.assignedLocked(id) {
		a.m[name] = id
		a.log.Info("voice auto-assigned", "name", name, "voice", id, "via", "name match")
		return id, true
	}

	if pool := a.poolLocked(); len(pool) > 0 {
		id := pool[stableHash(name)%uint64(len(pool))]
		a.m[name] = id
		a.log.Info("voice auto-assigned", "name", name, "voice", id, "via", "pool hash")
		return id, true
	}

	all := SortedIDs()
	id := all[stableHash(name)%uint64(len(all))]
	a.m[name] = id
	a.log.Warn("voice pool exhausted, reusing", "name", name, "voice", id)
	return id, true
}

// Set pins name to a specific catalog voice.
func (a *Assignments) Set(name, voiceID string) error {
	if !ValidID(voiceID) {
		return ErrUnknownVoice
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m[name] = voiceID
	a.log.Info("voice set", "name", name, "voice", voiceID)
	return nil
}

// Snapshot returns a copy of the current table for persistence.
func (a *Assignments) Snapshot() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]string, len(a.m))
	for k, v := range a.m {
		out[k] = v
	}
	return out
}

// Pool returns the sorted voice ids not currently assigned to any name.
func (a *Assignments) Pool() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.poolLocked()
}

func (a *Assignments) assignedLocked(voiceID string) bool {
	for _, v := range a.m {
		if v == voiceID {
			return true
		}
	}
	return false
}

func (a *Assignments) poolLocked() []string {
	assigned := make(map[string]bool, len(a.m))
	for _, v := range a.m {
		assigned[v] = true
	}
	pool := make([]string, 0, len(Catalog))
	for _, v := range Catalog {
		if !assigned[v.ID] {
			pool = append(pool, v.ID)
		}
	}
	sort.Strings(pool)
	return pool
}

// stableHash must agree across processes and restarts, since sibling
// sessions derive assignments independently. FNV-1a over the lowercased
// name.
func stableHash(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strings.ToLower(name)))
	return h.Sum64()
}

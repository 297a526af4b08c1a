package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Store serializes access to the shared sessions file. Every
// read-modify-write cycle runs under the file's exclusive advisory lock,
// which is the only cross-process synchronization point in the system.
//
// The file is always rewritten in place (truncate + write), never via
// rename: lock holders in other processes hold the inode, and a rename
// would leave them locking a dead file.
type Store struct {
	path string
	lk   *flock.Flock
}

// fileData is the on-disk envelope.
type fileData struct {
	Sessions []Record `json:"sessions"`
}

// NewStore creates a store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path, lk: flock.New(path)}
}

// Path returns the store file location.
func (s *Store) Path() string { return s.path }

// lock takes the exclusive advisory lock, creating the file and its
// directory on first use.
func (s *Store) lock() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("session: create data dir: %w", err)
	}
	if err := s.lk.Lock(); err != nil {
		return fmt.Errorf("session: lock %s: %w", s.path, err)
	}
	return nil
}

// unlock releases the advisory lock.
func (s *Store) unlock() error {
	if err := s.lk.Unlock(); err != nil {
		return fmt.Errorf("session: unlock %s: %w", s.path, err)
	}
	return nil
}

// read decodes the session list. The caller must hold the lock. A
// missing, empty or corrupt file reads as an empty list, never an error:
// the registry always recovers by rewriting it.
func (s *Store) read() []Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil
	}
	return fd.Sessions
}

// write encodes the session list. The caller must hold the lock.
func (s *Store) write(recs []Record) error {
	if recs == nil {
		recs = []Record{}
	}
	data, err := json.MarshalIndent(fileData{Sessions: recs}, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("session: write %s: %w", s.path, err)
	}
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("session: write %s: %w", s.path, werr)
	}
	if cerr != nil {
		return fmt.Errorf("session: write %s: %w", s.path, cerr)
	}
	return nil
}

// WithLock runs fn on the current session list under the lock. fn returns
// the new list and whether to persist it.
func (s *Store) WithLock(fn func(recs []Record) ([]Record, bool)) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.unlock()

	out, persist := fn(s.read())
	if !persist {
		return nil
	}
	return s.write(out)
}

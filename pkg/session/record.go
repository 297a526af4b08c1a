// Package session coordinates the voicesmith daemons sharing one host:
// a registry of live sessions kept in a single flock-protected JSON file,
// with staleness detection and reclamation of names, voices and ports
// from dead or orphaned processes.
package session

import (
	"os"
	"path/filepath"
	"time"
)

// FileName is the registry file inside the data directory.
const FileName = "sessions.json"

// Record is one live session's entry. The JSON field names are a
// cross-process contract: every voicesmith build on the host reads and
// writes the same file.
type Record struct {
	Name        string    `json:"name"`
	Voice       string    `json:"voice"`
	Port        int       `json:"port"`
	PID         int       `json:"pid"`
	SessionID   *string   `json:"session_id"`
	TmuxSession *string   `json:"tmux_session"`
	StartedAt   time.Time `json:"started_at"`
}

// HasTerminal reports whether transcripts can be routed to this session's
// terminal.
func (r Record) HasTerminal() bool {
	return r.TmuxSession != nil && *r.TmuxSession != ""
}

// DefaultPath returns ~/.local/share/voicesmith-mcp/sessions.json. The
// location is fixed (not platform-adjusted) so builds on macOS and Linux
// agree on it.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "voicesmith-mcp", FileName), nil
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// A Prober decides whether a session whose pid is still running is
// actually serving. Probe failures count as stale: a session we cannot
// vouch for must not hold a name, voice or port.
type Prober interface {
	Healthy(r Record) bool
}

// ParentProber treats a session as stale when its server process has been
// orphaned. IDEs launch the daemon as a child; when the IDE exits, the
// daemon is reparented to pid 1 (init/launchd) and will never receive
// another tool call.
type ParentProber struct {
	// Timeout bounds the ps invocation (default 2s).
	Timeout time.Duration
}

func (p ParentProber) Healthy(r Record) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return parentPID(r.PID, timeout) > 1
}

// parentPID returns the ppid of pid, or 0 when it cannot be determined.
func parentPID(pid int, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "ps", "-o", "ppid=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return 0
	}
	ppid, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0
	}
	return ppid
}

// HTTPProber asks the session's own liveness bridge. A session is healthy
// when GET /status answers ready and has seen a tool call recently; an
// alive-but-abandoned daemon reads as stale.
type HTTPProber struct {
	// MaxIdle is the tolerated last_tool_call_age_s (default 5 minutes).
	MaxIdle time.Duration
	// Timeout bounds the request (default 2s).
	Timeout time.Duration
}

func (p HTTPProber) Healthy(r Record) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	maxIdle := p.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 5 * time.Minute
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/status", r.Port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var status struct {
		Ready           bool    `json:"ready"`
		LastToolCallAge float64 `json:"last_tool_call_age_s"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false
	}
	return status.Ready && status.LastToolCallAge < maxIdle.Seconds()
}

// pidAlive reports whether the process exists. Signal errors (including
// permission errors) read as dead: sessions all run as the same user.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// terminate sends SIGTERM, best effort.
func terminate(pid int) {
	syscall.Kill(pid, syscall.SIGTERM)
}

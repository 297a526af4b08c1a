package wake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
	"unicode"

	"github.com/shshalom/voicesmith-mcp/pkg/session"
)

// ErrNoTarget reports that no live session has a terminal to type into.
var ErrNoTarget = errors.New("wake: no terminal-bearing session")

// Sink delivers routed text to a terminal session.
type Sink interface {
	Send(ctx context.Context, target, text string) error
}

// TmuxSink types text into a tmux session: the transcript in literal mode
// so shell metacharacters stay inert, then a separate Enter keypress.
type TmuxSink struct {
	Timeout time.Duration // per tmux invocation (default 5s)
}

// Send implements Sink.
func (s TmuxSink) Send(ctx context.Context, target, text string) error {
	if err := s.run(ctx, "send-keys", "-t", target, "-l", text); err != nil {
		return fmt.Errorf("wake: tmux send-keys: %w", err)
	}
	if err := s.run(ctx, "send-keys", "-t", target, "Enter"); err != nil {
		return fmt.Errorf("wake: tmux enter: %w", err)
	}
	return nil
}

func (s TmuxSink) run(ctx context.Context, args ...string) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return exec.CommandContext(ctx, "tmux", args...).Run()
}

// Lister supplies the live session table. *session.Registry satisfies it.
type Lister interface {
	ListActive() ([]session.Record, error)
}

// Router decides which terminal session receives a transcript.
type Router struct {
	sessions Lister
	sink     Sink
	log      *slog.Logger
}

// NewRouter creates a router over the session table and a delivery sink.
func NewRouter(sessions Lister, sink Sink, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{sessions: sessions, sink: sink, log: log}
}

// Route delivers text to the session it addresses and returns the tmux
// target used. With a single terminal-bearing session the whole
// transcript goes there. With several, the first word names the agent:
// on a match the remainder is delivered to that agent (nothing at all if
// the transcript was only the name), otherwise the full text falls
// through to the most recently registered session.
//
// Returns ErrNoTarget when no live session has a terminal, and "" with a
// nil error when the message was consumed without delivery.
func (r *Router) Route(ctx context.Context, text string) (string, error) {
	recs, err := r.sessions.ListActive()
	if err != nil {
		return "", fmt.Errorf("wake: list sessions: %w", err)
	}
	var terminals []session.Record
	for _, rec := range recs {
		if rec.HasTerminal() {
			terminals = append(terminals, rec)
		}
	}
	if len(terminals) == 0 {
		return "", ErrNoTarget
	}

	target := ""
	message := text
	if len(terminals) == 1 {
		target = *terminals[0].TmuxSession
	} else {
		first, rest := splitFirstWord(text)
		name := strings.Trim(first, ".,!?:")
		for _, rec := range terminals {
			if strings.EqualFold(name, rec.Name) {
				target = *rec.TmuxSession
				message = rest
				break
			}
		}
		if target == "" {
			// Nobody addressed by name: the most recently registered
			// session gets the whole transcript.
			target = *terminals[len(terminals)-1].TmuxSession
		}
	}

	if strings.TrimSpace(message) == "" {
		r.log.Info("nothing left to deliver after addressing", "target", target)
		return "", nil
	}
	if err := r.sink.Send(ctx, target, message); err != nil {
		return "", err
	}
	r.log.Info("transcript routed", "target", target, "chars", len(message))
	return target, nil
}

// splitFirstWord splits text at the first whitespace run, trimming the
// remainder's leading space.
func splitFirstWord(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

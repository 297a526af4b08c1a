package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shshalom/voicesmith-mcp/pkg/session"
)

// Client talks to a running daemon's loopback bridge. The CLI's one-shot
// commands use it so speak/listen go through the session that owns the
// audio devices instead of opening them a second time.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient points at the bridge on the given port.
func NewClient(port int) *Client {
	return &Client{
		base: fmt.Sprintf("http://127.0.0.1:%d", port),
		// Listen calls block for the whole capture; leave room for the
		// longest configured timeout.
		hc: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Status fetches the liveness document.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Speak triggers a speak cycle on the daemon.
func (c *Client) Speak(ctx context.Context, p SpeakParams) (*SpeakOutcome, error) {
	var out SpeakOutcome
	if err := c.do(ctx, http.MethodPost, "/speak", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Listen triggers a capture-and-transcribe cycle on the daemon.
func (c *Client) Listen(ctx context.Context, p ListenParams) (*ListenResult, error) {
	var out ListenResult
	if err := c.do(ctx, http.MethodPost, "/listen", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetCorrelation attaches the daemon to a logical agent conversation.
func (c *Client) SetCorrelation(ctx context.Context, sessionID string) (*session.Record, error) {
	body := map[string]string{"session_id": sessionID}
	var out session.Record
	if err := c.do(ctx, http.MethodPost, "/correlation", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WSURL returns the event feed endpoint for a websocket dial.
func (c *Client) WSURL() string {
	return "ws" + c.base[len("http"):] + "/ws"
}

// SpeakOutcome mirrors speech.SpeakResult for decoding bridge replies
// without importing the speech package into thin callers.
type SpeakOutcome struct {
	Success     bool    `json:"success"`
	Voice       string  `json:"voice,omitempty"`
	DurationMs  float64 `json:"duration_ms,omitempty"`
	SynthesisMs float64 `json:"synthesis_ms,omitempty"`
	Queued      bool    `json:"queued,omitempty"`
	Stopped     bool    `json:"stopped,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("daemon: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("daemon: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("daemon: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("daemon: %s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("daemon: decode response: %w", err)
	}
	return nil
}

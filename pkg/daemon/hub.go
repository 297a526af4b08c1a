package daemon

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shshalom/voicesmith-mcp/pkg/wake"
)

// Event kinds on the /ws feed.
const (
	eventWake   = "wake"
	eventSpeak  = "speak"
	eventListen = "listen"
)

// BridgeEvent is one entry on the websocket event feed.
type BridgeEvent struct {
	Kind string         `json:"kind"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// hub fans daemon lifecycle events out to websocket subscribers. Slow
// subscribers lose events rather than stalling the producers: publishers
// run on the wake loop and tool handlers and must never block.
type hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[string]chan []byte
}

func newHub(log *slog.Logger) *hub {
	return &hub{log: log, clients: make(map[string]chan []byte)}
}

func (h *hub) publish(kind string, data map[string]any) {
	msg, err := json.Marshal(BridgeEvent{Kind: kind, Time: time.Now(), Data: data})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			h.log.Debug("event subscriber lagging, dropped event", "client", id)
		}
	}
}

// wakeEvent adapts the arbiter's notifier callback onto the feed.
func (h *hub) wakeEvent(ev wake.Event) {
	data := map[string]any{"event": ev.Kind}
	switch ev.Kind {
	case wake.EventState:
		data["state"] = ev.State.String()
	case wake.EventDetection:
		data["score"] = ev.Score
	case wake.EventTranscript:
		data["text"] = ev.Text
		data["target"] = ev.Target
	}
	h.publish(eventWake, data)
}

var upgrader = websocket.Upgrader{
	// The bridge only listens on loopback; any local caller may watch.
	CheckOrigin: func(*http.Request) bool { return true },
}

// serveWS upgrades the connection and streams events until the client
// goes away.
func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "error", err)
		return
	}

	id := uuid.NewString()
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()
	h.log.Info("event subscriber connected", "client", id)

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		conn.Close()
		h.log.Info("event subscriber gone", "client", id)
	}()

	// Reader goroutine: we never expect inbound messages, but reading is
	// what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg := <-ch:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

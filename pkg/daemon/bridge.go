package daemon

import (
	"encoding/json"
	"net/http"
)

// bridgeHandler builds the loopback HTTP surface: the liveness probe
// other sessions use for staleness detection, push-to-talk style listen
// and speak triggers, correlation updates, and the websocket event feed.
func (d *Daemon) bridgeHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", d.handleStatus)
	mux.HandleFunc("POST /listen", d.handleListen)
	mux.HandleFunc("POST /speak", d.handleSpeak)
	mux.HandleFunc("POST /correlation", d.handleCorrelation)
	mux.HandleFunc("GET /ws", d.hub.serveWS)
	return mux
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.Status())
}

func (d *Daemon) handleListen(w http.ResponseWriter, r *http.Request) {
	var p ListenParams
	if !readJSON(w, r, &p) {
		return
	}
	writeJSON(w, http.StatusOK, d.Listen(r.Context(), p))
}

func (d *Daemon) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var p SpeakParams
	if !readJSON(w, r, &p) {
		return
	}
	if p.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, d.Speak(r.Context(), p))
}

func (d *Daemon) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if !readJSON(w, r, &p) {
		return
	}
	rec, err := d.SetCorrelation(p.SessionID)
	if err != nil {
		http.Error(w, `{"error":"correlation update failed"}`, http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, `{"error":"session not registered"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// readJSON decodes the body into v. An empty body is fine: every POST
// endpoint has usable defaults. Malformed JSON is the caller's fault.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"malformed request body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

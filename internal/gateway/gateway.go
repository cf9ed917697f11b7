// Package gateway is the thin HTTP surface over the session registry: the
// streaming chat endpoint plus the control endpoints of spec §6. The
// orchestration engine treats this layer as an external collaborator; no
// turn logic lives here.
package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/researchagent/internal/events"
	"github.com/haasonsaas/researchagent/internal/observability"
	"github.com/haasonsaas/researchagent/internal/sessions"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// Server wires the registry to HTTP handlers.
type Server struct {
	registry *sessions.Registry
	logger   *observability.Logger
	upgrader websocket.Upgrader
}

// NewServer builds the HTTP surface over registry.
func NewServer(registry *sessions.Registry, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "info"})
	}
	return &Server{
		registry: registry,
		logger:   logger,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("GET /api/v1/chat/ws", s.handleChatWS)
	mux.HandleFunc("POST /api/v1/sessions/{id}/stop", s.handleStop)
	mux.HandleFunc("POST /api/v1/sessions/{id}/clear", s.handleClear)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", s.handleDelete)
	mux.HandleFunc("GET /api/v1/sessions", s.handleList)
	mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleGet)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// turnPayload is the turn-submission body (spec §6).
type turnPayload struct {
	Message       string   `json:"message"`
	SessionID     string   `json:"session_id,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty"`
}

func (p turnPayload) toSubmit(stream bool) sessions.SubmitRequest {
	mode := models.ModeChat
	if strings.EqualFold(p.Mode, string(models.ModeAgent)) {
		mode = models.ModeAgent
	}
	return sessions.SubmitRequest{
		Message:       p.Message,
		SessionID:     p.SessionID,
		Mode:          mode,
		Temperature:   p.Temperature,
		MaxIterations: p.MaxIterations,
		Stream:        stream,
	}
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var payload turnPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sink, err := events.NewSSEWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := s.registry.Submit(r.Context(), payload.toSubmit(true), sink); err != nil {
		// The terminal error event has already been emitted on the stream;
		// this is for the server log only.
		s.logger.Error(r.Context(), "turn failed", "error", err)
	}
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var payload turnPayload
	if err := conn.ReadJSON(&payload); err != nil {
		return
	}
	sink := events.NewWSWriter(conn)
	if _, err := s.registry.Submit(r.Context(), payload.toSubmit(true), sink); err != nil {
		s.logger.Error(r.Context(), "turn failed", "error", err)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Cancel(r.PathValue("id")) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"status": "cancellation requested"})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Clear(r.PathValue("id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"status": "cleared"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	purge := r.URL.Query().Get("purge") == "true"
	if err := s.registry.Delete(r.PathValue("id"), purge); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"status": "deleted"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"sessions": s.registry.List(50)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	history, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, history)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

package events

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// SSEWriter projects events onto an HTTP response as server-sent
// records of the form `data: {JSON}\n\n`, flushing after each one. After
// the terminal event the transport-level `data: {"type":"done"}` sentinel
// is appended (spec §6 "Transport envelope").
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

// NewSSEWriter wraps w. It returns an error when w cannot flush, since a
// buffered stream defeats token-by-token rendering.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("events: response writer does not support flushing")
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Emit writes one event record. Headers are set lazily on the first event.
func (s *SSEWriter) Emit(event models.Event) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.started = true
	}

	payload, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("events: write: %w", err)
	}
	s.flusher.Flush()

	switch event.Type {
	case models.EventComplete, models.EventCancelled, models.EventError:
		if _, err := fmt.Fprint(s.w, "data: {\"type\":\"done\"}\n\n"); err != nil {
			return fmt.Errorf("events: write done sentinel: %w", err)
		}
		s.flusher.Flush()
	}
	return nil
}

// marshalEvent flattens the event into the wire shape clients consume:
// a type discriminator plus the payload fields inlined.
func marshalEvent(event models.Event) ([]byte, error) {
	record := map[string]any{"type": string(event.Type)}
	switch event.Type {
	case models.EventSessionCreated:
		if event.SessionCreated != nil {
			record["session_id"] = event.SessionCreated.SessionID
		}
	case models.EventStageSwitch:
		if event.StageSwitch != nil {
			record["data"] = event.StageSwitch
		}
	case models.EventThinkingStep:
		record["data"] = event.ThinkingStep
	case models.EventChunk:
		record["data"] = event.Chunk
	case models.EventCancelled:
		if event.Cancelled != nil {
			record["message"] = event.Cancelled.Message
			record["steps_completed"] = event.Cancelled.StepsCompleted
			if event.Cancelled.Stage != "" {
				record["stage"] = event.Cancelled.Stage
			}
		}
	case models.EventError:
		if event.Error != nil {
			record["message"] = event.Error.Message
		}
	case models.EventComplete:
		record["data"] = event.Complete
	}
	return json.Marshal(record)
}

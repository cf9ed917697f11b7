package events

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// WSWriter projects events onto a WebSocket connection, one JSON text
// frame per event, the alternative transport to SSE. The writer serializes
// frames itself since gorilla connections allow one concurrent writer.
type WSWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSWriter wraps an upgraded connection.
func NewWSWriter(conn *websocket.Conn) *WSWriter {
	return &WSWriter{conn: conn}
}

// Emit writes one event frame, then the done sentinel after a terminal
// event, mirroring the SSE envelope.
func (w *WSWriter) Emit(event models.Event) error {
	payload, err := marshalEvent(event)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("events: websocket write: %w", err)
	}
	switch event.Type {
	case models.EventComplete, models.EventCancelled, models.EventError:
		if err := w.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"done"}`)); err != nil {
			return fmt.Errorf("events: websocket write done sentinel: %w", err)
		}
	}
	return nil
}

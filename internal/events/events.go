// Package events carries the ordered event stream of a turn (C10) from
// the React loop to transport adapters: an SSE writer for HTTP streaming
// and a WebSocket writer, plus an in-memory collector for replay and tests.
package events

import (
	"sync"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// Sink receives the events of one turn in emission order. Implementations
// must tolerate being called from the session's single turn goroutine only;
// the loop never emits concurrently (spec §5 "Ordering guarantees").
type Sink interface {
	Emit(event models.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(models.Event) error

func (f SinkFunc) Emit(event models.Event) error { return f(event) }

// Collector buffers events in order. Used by tests and by the
// non-streaming submission path that only needs the terminal envelope.
type Collector struct {
	mu     sync.Mutex
	events []models.Event
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Emit(event models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (c *Collector) Events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Event, len(c.events))
	copy(out, c.events)
	return out
}

// Terminal returns the turn's single terminal event (complete, cancelled,
// or error), if one was emitted.
func (c *Collector) Terminal() (models.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		switch e.Type {
		case models.EventComplete, models.EventCancelled, models.EventError:
			return e, true
		}
	}
	return models.Event{}, false
}

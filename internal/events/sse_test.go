package events

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/haasonsaas/researchagent/pkg/models"
)

func TestSSEWriterFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatal(err)
	}

	step := models.ThinkingStep{Step: 1, Tool: "web_search", Output: "results", Success: true}
	if err := w.Emit(models.Event{Type: models.EventThinkingStep, ThinkingStep: &step}); err != nil {
		t.Fatal(err)
	}
	resp := models.ChatResponse{ResponseID: "resp_x", AssistantMessage: "done"}
	if err := w.Emit(models.Event{Type: models.EventComplete, Complete: &resp}); err != nil {
		t.Fatal(err)
	}

	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := rec.Header().Get("Connection"); got != "keep-alive" {
		t.Errorf("Connection = %q", got)
	}
	if got := rec.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("X-Accel-Buffering = %q", got)
	}

	body := rec.Body.String()
	records := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(records) != 3 {
		t.Fatalf("records = %d, want thinking_step + complete + done:\n%s", len(records), body)
	}
	for i, r := range records {
		if !strings.HasPrefix(r, "data: ") {
			t.Fatalf("record %d missing data prefix: %q", i, r)
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(r, "data: ")), &decoded); err != nil {
			t.Fatalf("record %d is not JSON: %v", i, err)
		}
	}
	if !strings.Contains(records[2], `"type":"done"`) {
		t.Errorf("stream must end with the done sentinel: %q", records[2])
	}
}

func TestCollectorTerminal(t *testing.T) {
	c := NewCollector()
	c.Emit(models.Event{Type: models.EventThinkingStep, ThinkingStep: &models.ThinkingStep{Step: 1}})
	if _, ok := c.Terminal(); ok {
		t.Fatal("no terminal yet")
	}
	c.Emit(models.Event{Type: models.EventCancelled, Cancelled: &models.CancelledPayload{Message: "stop"}})
	term, ok := c.Terminal()
	if !ok || term.Type != models.EventCancelled {
		t.Fatalf("terminal = %+v", term)
	}
}

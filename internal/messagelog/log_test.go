package messagelog

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/researchagent/pkg/models"
)

func TestLog_AppendAndList(t *testing.T) {
	l := New()
	if err := l.AppendSystem("sys"); err != nil {
		t.Fatalf("AppendSystem: %v", err)
	}
	if err := l.AppendUser("hi"); err != nil {
		t.Fatalf("AppendUser: %v", err)
	}
	args, _ := json.Marshal(map[string]string{"query": "x"})
	if err := l.AppendAssistant("", []models.ToolCallProposal{{ID: "c1", Type: "function", Name: "web_search", Arguments: args}}); err != nil {
		t.Fatalf("AppendAssistant: %v", err)
	}
	if err := l.AppendToolResult("c1", "result text"); err != nil {
		t.Fatalf("AppendToolResult: %v", err)
	}

	msgs := l.List()
	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want 4", len(msgs))
	}
	if msgs[3].ToolCallID != "c1" {
		t.Errorf("tool result id = %q, want c1", msgs[3].ToolCallID)
	}
}

func TestLog_AppendAssistant_RequiresContentOrCalls(t *testing.T) {
	l := New()
	if err := l.AppendAssistant("", nil); err == nil {
		t.Error("expected error for empty assistant message")
	}
}

func TestLog_AppendToolResult_RequiresID(t *testing.T) {
	l := New()
	if err := l.AppendToolResult("", "x"); err == nil {
		t.Error("expected error for missing tool_call_id")
	}
}

func TestLog_ReplaceSystemPrompt(t *testing.T) {
	l := New()
	l.AppendSystem("chat prompt")
	l.AppendUser("hello")

	if err := l.ReplaceSystemPrompt("agent prompt"); err != nil {
		t.Fatalf("ReplaceSystemPrompt: %v", err)
	}
	msgs := l.List()
	if msgs[0].Content != "agent prompt" {
		t.Errorf("position 0 content = %q, want %q", msgs[0].Content, "agent prompt")
	}
	if len(msgs) != 2 {
		t.Errorf("len(msgs) = %d, want 2 (replace must not duplicate)", len(msgs))
	}
}

func TestLog_Length_ExcludingSystem(t *testing.T) {
	l := New()
	l.AppendSystem("s")
	l.AppendUser("u1")
	l.AppendUser("u2")
	if got := l.Length(false); got != 3 {
		t.Errorf("Length(false) = %d, want 3", got)
	}
	if got := l.Length(true); got != 2 {
		t.Errorf("Length(true) = %d, want 2", got)
	}
}

func TestLog_Clear_KeepSystem(t *testing.T) {
	l := New()
	l.AppendSystem("s")
	l.AppendUser("u1")
	if err := l.Clear(true); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	msgs := l.List()
	if len(msgs) != 1 || msgs[0].Role != models.RoleSystem {
		t.Errorf("Clear(true) left %v, want just the system message", msgs)
	}
}

func TestLoad_MissingFileYieldsEmptyLog(t *testing.T) {
	dir := t.TempDir()
	l, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(l.List()) != 0 {
		t.Errorf("expected empty log for missing file")
	}
}

func TestLog_PersistAndReload(t *testing.T) {
	dir := t.TempDir()
	l := New()
	if err := l.SetPersistDir(dir); err != nil {
		t.Fatalf("SetPersistDir: %v", err)
	}
	l.AppendSystem("sys")
	l.AppendUser("hello")

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	msgs := reloaded.List()
	if len(msgs) != 2 || msgs[1].Content != "hello" {
		t.Fatalf("reloaded messages = %+v", msgs)
	}

	if got := filepath.Base(reloaded.path); got != "messages.json" {
		t.Errorf("persist path base = %q, want messages.json", got)
	}
}

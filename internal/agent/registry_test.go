package agent

import (
	"context"
	"encoding/json"
	"testing"
)

type fakeTool struct {
	name   string
	result *ToolResult
	err    error
}

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake tool" }
func (f *fakeTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	return f.result, f.err
}

func TestRegistry_RegisterGetUnregister(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&fakeTool{name: "web_search"})
	if _, ok := r.Get("web_search"); !ok {
		t.Fatal("expected web_search registered")
	}
	r.Unregister("web_search")
	if _, ok := r.Get("web_search"); ok {
		t.Fatal("expected web_search removed")
	}
}

func TestRegistry_Reset(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&fakeTool{name: "a"})
	r.Reset([]Tool{&fakeTool{name: "b"}})
	if _, ok := r.Get("a"); ok {
		t.Error("expected a to be gone after Reset")
	}
	if _, ok := r.Get("b"); !ok {
		t.Error("expected b present after Reset")
	}
}

func TestRegistry_Specs_SortedByName(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&fakeTool{name: "zeta"})
	r.Register(&fakeTool{name: "alpha"})
	specs := r.Specs()
	if len(specs) != 2 || specs[0].Function.Name != "alpha" || specs[1].Function.Name != "zeta" {
		t.Fatalf("specs = %+v", specs)
	}
}

func TestRegistry_Dispatch_ToolNotFound(t *testing.T) {
	r := NewToolRegistry()
	dr := r.Dispatch(context.Background(), "missing", json.RawMessage(`{}`))
	if dr.Err == nil || dr.Err.Type != ToolErrorNotFound {
		t.Fatalf("expected not-found error, got %+v", dr)
	}
	if !dr.Failed() {
		t.Error("expected Failed() true")
	}
	if dr.ResultText() != "Tool 'missing' not found" {
		t.Errorf("ResultText() = %q", dr.ResultText())
	}
}

func TestRegistry_Dispatch_MalformedArguments(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&fakeTool{name: "web_search"})
	dr := r.Dispatch(context.Background(), "web_search", json.RawMessage(`not json`))
	if dr.Err == nil {
		t.Fatal("expected parse error")
	}
	if dr.Err.Type != ToolErrorInvalidInput {
		t.Errorf("Type = %s", dr.Err.Type)
	}
	if !dr.Failed() {
		t.Error("expected Failed() true")
	}
}

func TestRegistry_Dispatch_Success(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&fakeTool{name: "web_search", result: &ToolResult{Content: "ok"}})
	dr := r.Dispatch(context.Background(), "web_search", json.RawMessage(`{"query":"x"}`))
	if dr.Err != nil {
		t.Fatalf("unexpected err: %v", dr.Err)
	}
	if dr.ResultText() != "ok" {
		t.Errorf("ResultText() = %q", dr.ResultText())
	}
	if dr.Failed() {
		t.Error("should not be Failed()")
	}
}

func TestRegistry_Dispatch_StructuredResult(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&fakeTool{name: "web_search", result: &ToolResult{Structured: map[string]any{"query": "x"}}})
	dr := r.Dispatch(context.Background(), "web_search", json.RawMessage(`{}`))
	var decoded map[string]any
	if err := json.Unmarshal([]byte(dr.ResultText()), &decoded); err != nil {
		t.Fatalf("expected JSON result text: %v, got %q", err, dr.ResultText())
	}
}

func TestDispatchResult_Failed_Heuristics(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Failed to parse tool arguments: x", true},
		{"Tool execution failed: boom", true},
		{"Tool 'x' not found", true},
		{"all good", false},
	}
	for _, tt := range tests {
		dr := DispatchResult{Result: &ToolResult{Content: tt.text}}
		if got := dr.Failed(); got != tt.want {
			t.Errorf("Failed() for %q = %v, want %v", tt.text, got, tt.want)
		}
	}
}

type strictTool struct{}

func (strictTool) Name() string        { return "strict" }
func (strictTool) Description() string { return "schema-validated tool" }
func (strictTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"count": map[string]any{"type": "integer"},
		},
		"required": []string{"count"},
	}
}
func (strictTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	return &ToolResult{Content: "ran"}, nil
}

func TestRegistry_Dispatch_SchemaValidation(t *testing.T) {
	r := NewToolRegistry()
	r.Register(strictTool{})

	dr := r.Dispatch(context.Background(), "strict", json.RawMessage(`{}`))
	if dr.Err == nil || dr.Err.Type != ToolErrorInvalidInput {
		t.Fatalf("missing required arg must fail validation, got %+v", dr)
	}

	dr = r.Dispatch(context.Background(), "strict", json.RawMessage(`{"count": 3}`))
	if dr.Err != nil {
		t.Fatalf("valid args rejected: %v", dr.Err)
	}
	if dr.ResultText() != "ran" {
		t.Errorf("ResultText() = %q", dr.ResultText())
	}
}

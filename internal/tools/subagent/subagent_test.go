package subagent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/internal/workspace"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// readThenAnswer proposes one file_read, then answers.
type readThenAnswer struct {
	mu    sync.Mutex
	calls int
}

func (p *readThenAnswer) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls == 1 {
		return &providers.ChatResponse{ToolCalls: []models.ToolCallProposal{{
			ID: "r1", Type: "function", Name: "file_read",
			Arguments: json.RawMessage(`{"path":"notes.md"}`),
		}}}, nil
	}
	return &providers.ChatResponse{Content: "The notes say the draft is empty."}, nil
}

func (p *readThenAnswer) ChatStream(ctx context.Context, req providers.ChatRequest, sink func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *readThenAnswer) Name() string { return "fake" }

func TestResearchAssistantNewConversation(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ws"))
	if err := ws.Init(); err != nil {
		t.Fatal(err)
	}
	tool := New(&readThenAnswer{}, ws, "", nil)

	result, err := tool.Execute(context.Background(), map[string]any{"question": "what do my notes say?"})
	if err != nil {
		t.Fatal(err)
	}
	env := result.Structured.(resultEnvelope)
	if !env.Success {
		t.Fatalf("envelope = %+v", env)
	}
	if env.ConvID == "" || env.Answer == "" {
		t.Errorf("missing conv_id or answer: %+v", env)
	}

	// The dialogue must be persisted under conversations/<conv_id>/.
	if _, err := ws.Read(filepath.Join("conversations", env.ConvID, "messages.json")); err != nil {
		t.Errorf("conversation not persisted: %v", err)
	}

	// Continuing the same conv_id reuses the dialogue.
	followup, err := tool.Execute(context.Background(), map[string]any{
		"question": "and the draft?", "conv_id": env.ConvID,
	})
	if err != nil {
		t.Fatal(err)
	}
	env2 := followup.Structured.(resultEnvelope)
	if !env2.Success || env2.ConvID != env.ConvID {
		t.Errorf("follow-up envelope = %+v", env2)
	}
	if env2.TotalMessages <= env.TotalMessages {
		t.Errorf("conversation did not grow: %d -> %d", env.TotalMessages, env2.TotalMessages)
	}
}

func TestResearchAssistantUnknownConvID(t *testing.T) {
	ws := workspace.New(filepath.Join(t.TempDir(), "ws"))
	if err := ws.Init(); err != nil {
		t.Fatal(err)
	}
	tool := New(&readThenAnswer{}, ws, "", nil)

	result, err := tool.Execute(context.Background(), map[string]any{
		"question": "hi", "conv_id": "conv_missing",
	})
	if err != nil {
		t.Fatal(err)
	}
	env := result.Structured.(resultEnvelope)
	if env.Success {
		t.Errorf("unknown conv_id must fail: %+v", env)
	}
}

func TestResearchAssistantRequiresQuestion(t *testing.T) {
	tool := New(&readThenAnswer{}, nil, "", nil)
	result, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if env := result.Structured.(resultEnvelope); env.Success {
		t.Errorf("empty question must fail")
	}
}

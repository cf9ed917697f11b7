// Package providers adapts the vendor-neutral LLMProvider contract the
// React loop and compaction sub-agent depend on to concrete SDKs
// (Anthropic, OpenAI-compatible). The vendor boundary itself — "Chat(messages,
// tools, stream?) -> response | event stream" — is out of scope per spec §1;
// this package is the seam where that boundary is implemented.
package providers

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// ChatRequest is the vendor-neutral request shape for one model call.
type ChatRequest struct {
	Model       string
	Messages    []models.Message
	Tools       []agent.Spec
	ToolChoice  string // "auto", "none", or a forced tool name
	Temperature float64
	MaxTokens   int
	Stream      bool
}

// ChatResponse is the vendor-neutral result of a (possibly streamed) call.
type ChatResponse struct {
	Content      string
	ToolCalls    []models.ToolCallProposal
	PromptTokens int
	// StopReason mirrors the vendor's finish/stop reason, used by the loop
	// to distinguish "no tool calls, truly done" from vendor-side truncation.
	StopReason string
}

// StreamChunk is one token-group fragment emitted during a streaming call,
// projected onward as a `chunk` event (spec §4.10).
type StreamChunk struct {
	Text string
	Done bool
	Resp *ChatResponse // populated on the final chunk
}

// LLMProvider is the vendor-neutral contract for a model backend.
type LLMProvider interface {
	// Chat issues a non-streaming call and returns the complete response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// ChatStream issues a streaming call, delivering chunks to sink until
	// the final chunk (Done=true, Resp populated) or ctx is cancelled.
	ChatStream(ctx context.Context, req ChatRequest, sink func(StreamChunk)) (*ChatResponse, error)
	// Name identifies the provider for logging/metrics (e.g. "anthropic").
	Name() string
}

// MarshalArguments is a small helper used by providers translating their
// native tool-call shape into models.ToolCallProposal.
func MarshalArguments(v any) (json.RawMessage, error) {
	return json.Marshal(v)
}

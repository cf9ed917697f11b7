// Package subagent implements the research_assistant tool: a named
// sub-dialogue under conversations/<conv_id>/ running its own nested
// reason-act loop with only file_read available, so heavy reading stays
// out of the main context.
package subagent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/messagelog"
	"github.com/haasonsaas/researchagent/internal/observability"
	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/internal/tools/files"
	"github.com/haasonsaas/researchagent/internal/workspace"
)

// maxIterations caps each consultation's nested loop (spec §4.4.4).
const maxIterations = 10

const assistantSystemPrompt = `You are a friendly research buddy - a helpful colleague here to chat and collaborate.

You help with:
- Reading and analyzing files from the workspace
- Giving second opinions on research direction
- Answering questions about content you have read
- Reviewing drafts and providing feedback

Available tools:
- file_read: read workspace files (progress.md, notes.md, draft.md, cache/*.md, and so on)

Be conversational and honest. Remember the conversation as it goes. Push back, ask clarifying questions, or suggest alternatives when warranted.`

// Tool is the research_assistant registry entry.
type Tool struct {
	provider providers.LLMProvider
	ws       *workspace.Workspace
	logger   *observability.Logger
	model    string
}

// New binds the tool to a session workspace. model may be empty to use the
// provider default.
func New(provider providers.LLMProvider, ws *workspace.Workspace, model string, logger *observability.Logger) *Tool {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "info"})
	}
	return &Tool{provider: provider, ws: ws, logger: logger, model: model}
}

func (t *Tool) Name() string { return "research_assistant" }

func (t *Tool) Description() string {
	return "Chat with a research buddy who can read and analyze workspace files for you. Good for second opinions on articles, comparing sources, reviewing drafts, or bouncing ideas around. The buddy remembers the conversation via conv_id, so you can have a natural back-and-forth discussion."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "Your question or request for the research assistant: read files, analyze content, review work, and so on.",
			},
			"conv_id": map[string]any{
				"type":        "string",
				"description": "Conversation ID to continue a previous dialogue. Omit to start a new conversation; the response returns the conv_id for follow-ups.",
			},
		},
		"required": []string{"question"},
	}
}

// resultEnvelope is the structured result shape of one consultation.
type resultEnvelope struct {
	Success       bool   `json:"success"`
	Answer        string `json:"answer"`
	ConvID        string `json:"conv_id,omitempty"`
	TotalMessages int    `json:"total_messages,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	question, _ := args["question"].(string)
	if strings.TrimSpace(question) == "" {
		return &agent.ToolResult{
			Structured: resultEnvelope{Success: false, Error: "question is required"},
			IsError:    true,
		}, nil
	}
	convID, _ := args["conv_id"].(string)

	log, convID, err := t.openConversation(convID)
	if err != nil {
		return &agent.ToolResult{
			Structured: resultEnvelope{Success: false, Error: err.Error()},
			IsError:    true,
		}, nil
	}

	if err := log.AppendUser(question); err != nil {
		return &agent.ToolResult{
			Structured: resultEnvelope{Success: false, Error: err.Error(), ConvID: convID},
			IsError:    true,
		}, nil
	}

	registry := agent.NewToolRegistry()
	registry.Register(files.NewReadTool(t.ws))
	specs := registry.Specs()

	var answer string
	for iteration := 1; iteration <= maxIterations; iteration++ {
		resp, err := t.provider.Chat(ctx, providers.ChatRequest{
			Model:       t.model,
			Messages:    log.List(),
			Tools:       specs,
			ToolChoice:  "auto",
			Temperature: 0.7,
		})
		if err != nil {
			return &agent.ToolResult{
				Structured: resultEnvelope{Success: false, Error: fmt.Sprintf("assistant model call: %v", err), ConvID: convID},
				IsError:    true,
			}, nil
		}

		if len(resp.ToolCalls) == 0 {
			answer = resp.Content
			if err := log.AppendAssistant(answer, nil); err != nil {
				t.logger.Warn(ctx, "failed to persist assistant answer", "conv_id", convID, "error", err)
			}
			break
		}

		if err := log.AppendAssistant(resp.Content, resp.ToolCalls); err != nil {
			return &agent.ToolResult{
				Structured: resultEnvelope{Success: false, Error: err.Error(), ConvID: convID},
				IsError:    true,
			}, nil
		}
		for _, call := range resp.ToolCalls {
			dr := registry.Dispatch(ctx, call.Name, call.Arguments)
			if err := log.AppendToolResult(call.ID, dr.ResultText()); err != nil {
				return &agent.ToolResult{
					Structured: resultEnvelope{Success: false, Error: err.Error(), ConvID: convID},
					IsError:    true,
				}, nil
			}
		}
	}

	if answer == "" {
		return &agent.ToolResult{
			Structured: resultEnvelope{Success: false, Error: "assistant exceeded iteration limit", ConvID: convID},
			IsError:    true,
		}, nil
	}
	return &agent.ToolResult{Structured: resultEnvelope{
		Success:       true,
		Answer:        answer,
		ConvID:        convID,
		TotalMessages: log.Length(false),
	}}, nil
}

// openConversation loads an existing conversation or mints a new one under
// conversations/<conv_id>/. Continuing an unknown conv_id is an error, so
// the model learns to omit it instead of guessing.
func (t *Tool) openConversation(convID string) (*messagelog.Log, string, error) {
	if convID != "" {
		rel := filepath.Join("conversations", convID)
		dir, err := t.ws.Resolve(rel)
		if err != nil {
			return nil, "", fmt.Errorf("invalid conv_id %q", convID)
		}
		log, err := messagelog.Load(dir)
		if err != nil {
			return nil, "", err
		}
		if log.Length(false) == 0 {
			return nil, "", fmt.Errorf("conversation %s not found; omit conv_id to start a new conversation", convID)
		}
		return log, convID, nil
	}

	convID = "conv_" + uuid.NewString()[:8]
	rel := filepath.Join("conversations", convID)
	if err := t.ws.Write(filepath.Join(rel, ".keep"), "", false); err != nil {
		return nil, "", err
	}
	dir, err := t.ws.Resolve(rel)
	if err != nil {
		return nil, "", err
	}
	log := messagelog.New()
	if err := log.AppendSystem(assistantSystemPrompt); err != nil {
		return nil, "", err
	}
	if err := log.SetPersistDir(dir); err != nil {
		return nil, "", err
	}
	return log, convID, nil
}

package compaction

import (
	"context"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/messagelog"
	"github.com/haasonsaas/researchagent/internal/workspace"
)

// Tool exposes the compactor as the compact_context registry entry so the
// model can trigger a pass explicitly (spec §4.6 "Trigger").
type Tool struct {
	compactor *Compactor
	log       *messagelog.Log
	ws        *workspace.Workspace
}

// NewTool binds a compactor to one session's log and workspace.
func NewTool(compactor *Compactor, log *messagelog.Log, ws *workspace.Workspace) *Tool {
	return &Tool{compactor: compactor, log: log, ws: ws}
}

func (t *Tool) Name() string { return "compact_context" }

func (t *Tool) Description() string {
	return "Compact conversation context to reduce token usage. Summarizes older messages while preserving recent user turns intact. Use when experiencing reasoning difficulties or approaching context limits."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"keep_recent_user_messages": map[string]any{
				"type":        "integer",
				"description": "Number of recent user messages to keep intact (default: 10)",
				"default":     DefaultKeepRecent,
			},
		},
		"required": []string{},
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	keep := DefaultKeepRecent
	if v, ok := args["keep_recent_user_messages"].(float64); ok && v > 0 {
		keep = int(v)
	}
	result, err := t.compactor.Compact(ctx, t.log, t.ws, keep)
	if err != nil {
		return &agent.ToolResult{
			Structured: map[string]any{"success": false, "error": err.Error()},
			IsError:    true,
		}, nil
	}
	return &agent.ToolResult{Structured: result}, nil
}

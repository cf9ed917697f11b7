// Package compaction implements the compaction sub-agent (C6): a nested
// reason-act loop that summarizes an old Message Log prefix into a
// structured digest, preserving the recent tail.
package compaction

import (
	"context"
	"fmt"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/messagelog"
	"github.com/haasonsaas/researchagent/internal/observability"
	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/internal/tools/files"
	"github.com/haasonsaas/researchagent/internal/workspace"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// DefaultKeepRecent is the keep-recent user-message count K (spec §4.6).
const DefaultKeepRecent = 10

// maxAgentIterations caps the nested digest-producing loop.
const maxAgentIterations = 10

// digestSystemPrompt instructs the nested agent. The expected output is
// plain text in the fixed five-section shape.
const digestSystemPrompt = `You are a conversation context compressor. Your job: compress old conversation history into a structured summary that allows the main agent to resume seamlessly.

You have ONE tool available: file_read. Use it when the conversation references workspace files (progress.md, notes.md, draft.md, cache/*.md) whose contents would sharpen the summary. When you have enough information, output your final answer directly without calling any tools.

Your final answer must consist of exactly these five XML sections:

<overall_goal>
One clear sentence: what is the user's ultimate objective?
</overall_goal>

<file_system_state>
ALL file operations with CREATED/MODIFIED/READ prefixes, exact paths preserved, plus a STATUS line for the overall workspace state.
</file_system_state>

<key_knowledge>
Hard facts and research insights: specific data points with numbers and units, URLs, constraints, and strategic decisions made.
</key_knowledge>

<recent_actions>
The last 5-10 tool executions as tool_name(exact_parameters) -> specific_result, including file paths, data extracted, and errors.
</recent_actions>

<current_plan>
Numbered next steps, pending decisions, and the continuation strategy.
</current_plan>

Focus on FACTS and RESULTS, not process descriptions. Preserve all file paths exactly as mentioned.`

// Result reports what a compaction pass did.
type Result struct {
	Compacted      bool   `json:"compacted"`
	Message        string `json:"message"`
	MessagesBefore int    `json:"messages_before"`
	MessagesAfter  int    `json:"messages_after"`
	OldSummarized  int    `json:"old_messages_summarized"`
	RecentKept     int    `json:"recent_messages_kept"`
}

// Compactor runs compaction passes against a session's Message Log.
type Compactor struct {
	provider providers.LLMProvider
	logger   *observability.Logger
	metrics  *observability.Metrics
	model    string
}

// NewCompactor builds a compactor using provider for both the digest loop
// and the confirmation call. model may be empty to use the provider default.
func NewCompactor(provider providers.LLMProvider, model string, logger *observability.Logger, metrics *observability.Metrics) *Compactor {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "info"})
	}
	return &Compactor{provider: provider, logger: logger, metrics: metrics, model: model}
}

// Split locates the compaction boundary: the index of the keepRecent-th
// most recent user message, and the end of the system prefix. ok is false
// when fewer than keepRecent user messages exist (no-op per spec §4.6).
func Split(msgs []models.Message, keepRecent int) (systemEnd, splitIdx int, ok bool) {
	for systemEnd < len(msgs) && msgs[systemEnd].Role == models.RoleSystem {
		systemEnd++
	}

	userCount := 0
	for i := len(msgs) - 1; i >= systemEnd; i-- {
		if msgs[i].Role == models.RoleUser {
			userCount++
			if userCount == keepRecent {
				return systemEnd, i, true
			}
		}
	}
	return systemEnd, len(msgs), false
}

// Compact applies the compaction policy to log. ws may be nil, in which
// case the nested agent runs without file access. Failures never mutate
// the log (spec §7 kind 9: log and continue without compacting).
func (c *Compactor) Compact(ctx context.Context, log *messagelog.Log, ws *workspace.Workspace, keepRecent int) (*Result, error) {
	if keepRecent <= 0 {
		keepRecent = DefaultKeepRecent
	}

	msgs := log.List()
	systemEnd, splitIdx, ok := Split(msgs, keepRecent)
	if !ok {
		return &Result{
			Compacted:      false,
			Message:        "too few user messages to compact",
			MessagesBefore: len(msgs),
			MessagesAfter:  len(msgs),
		}, nil
	}

	old := msgs[systemEnd:splitIdx]
	recent := msgs[splitIdx:]
	if len(old) == 0 {
		return &Result{
			Compacted:      false,
			Message:        "no old messages to compact",
			MessagesBefore: len(msgs),
			MessagesAfter:  len(msgs),
		}, nil
	}

	c.logger.Info(ctx, "compacting message log",
		"old_messages", len(old), "recent_messages", len(recent))

	digest, err := c.produceDigest(ctx, old, ws)
	if err != nil {
		if c.metrics != nil {
			c.metrics.RecordCompaction("failed")
		}
		return nil, fmt.Errorf("compaction: %w", err)
	}

	confirmation, err := c.produceConfirmation(ctx, msgs[:systemEnd], digest)
	if err != nil {
		c.logger.Warn(ctx, "confirmation call failed, using fallback", "error", err)
		confirmation = "I understand the previous work and will continue from here."
	}

	rebuilt := make([]models.Message, 0, systemEnd+len(recent)+3)
	rebuilt = append(rebuilt, msgs[:systemEnd]...)
	rebuilt = append(rebuilt,
		models.Message{Role: models.RoleUser, Content: "Context Summary:\n" + digest},
		models.Message{Role: models.RoleAssistant, Content: confirmation},
	)
	rebuilt = append(rebuilt, recent...)
	rebuilt = append(rebuilt, models.Message{Role: models.RoleUser, Content: "Please continue your work."})

	if err := log.Replace(rebuilt); err != nil {
		return nil, fmt.Errorf("compaction: rewrite log: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordCompaction("success")
	}

	return &Result{
		Compacted:      true,
		Message:        fmt.Sprintf("Context compacted: %d -> %d messages", len(msgs), len(rebuilt)),
		MessagesBefore: len(msgs),
		MessagesAfter:  len(rebuilt),
		OldSummarized:  len(old),
		RecentKept:     len(recent),
	}, nil
}

// produceDigest runs the nested reason-act loop over the old prefix with
// only file_read available, capped at maxAgentIterations.
func (c *Compactor) produceDigest(ctx context.Context, old []models.Message, ws *workspace.Workspace) (string, error) {
	registry := agent.NewToolRegistry()
	var specs []agent.Spec
	if ws != nil {
		registry.Register(files.NewReadTool(ws))
		specs = registry.Specs()
	}

	convo := make([]models.Message, 0, len(old)+2)
	convo = append(convo, models.Message{Role: models.RoleSystem, Content: digestSystemPrompt})
	convo = append(convo, old...)
	convo = append(convo, models.Message{
		Role:    models.RoleUser,
		Content: "Summarize the above conversation using the five-section XML format. Use file_read if needed.",
	})

	for iteration := 1; iteration <= maxAgentIterations; iteration++ {
		resp, err := c.provider.Chat(ctx, providers.ChatRequest{
			Model:       c.model,
			Messages:    convo,
			Tools:       specs,
			ToolChoice:  "auto",
			Temperature: 0.2,
		})
		if err != nil {
			return "", fmt.Errorf("digest model call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if resp.Content == "" {
				return "", fmt.Errorf("digest agent returned empty summary")
			}
			return resp.Content, nil
		}

		convo = append(convo, models.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			dr := registry.Dispatch(ctx, call.Name, call.Arguments)
			convo = append(convo, models.Message{
				Role:       models.RoleTool,
				ToolCallID: call.ID,
				Content:    dr.ResultText(),
			})
		}
	}
	return "", fmt.Errorf("digest agent exceeded %d iterations", maxAgentIterations)
}

// produceConfirmation issues the second model call so the main agent sees
// a natural acknowledgement turn rather than an injected fake (spec §4.6).
func (c *Compactor) produceConfirmation(ctx context.Context, system []models.Message, digest string) (string, error) {
	convo := make([]models.Message, 0, len(system)+1)
	convo = append(convo, system...)
	convo = append(convo, models.Message{
		Role:    models.RoleUser,
		Content: "Context Summary:\n" + digest + "\n\nPlease review the above summary and confirm your understanding of previous work.",
	})

	resp, err := c.provider.Chat(ctx, providers.ChatRequest{
		Model:       c.model,
		Messages:    convo,
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if resp.Content == "" {
		return "", fmt.Errorf("empty confirmation")
	}
	return resp.Content, nil
}

package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/events"
	"github.com/haasonsaas/researchagent/internal/mcp"
	"github.com/haasonsaas/researchagent/internal/observability"
	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/internal/tools/control"
	"github.com/haasonsaas/researchagent/internal/workspace"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// TurnRequest is one accepted user turn.
type TurnRequest struct {
	Message       string
	UserID        string
	Mode          models.Mode
	Temperature   *float64
	MaxIterations int
	// Stream turns on chunked emission of the final answer text.
	Stream bool
}

// turnState is the per-turn working set the loop threads through its
// phases.
type turnState struct {
	req       TurnRequest
	sink      events.Sink
	ws        *workspace.Workspace
	tools     *toolset
	tracker   *agent.SourceTracker
	steps     []models.ThinkingStep
	startedAt time.Time

	temperature      float64
	maxIterations    int
	lastPromptTokens int
}

// RunTurn executes one turn: exactly one response envelope or one
// cancellation (or error) event is emitted per accepted turn (spec
// invariant (e)). Turns on the same engine serialize on the engine mutex.
func (e *Engine) RunTurn(ctx context.Context, req TurnRequest, sink events.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := &turnState{
		req:           req,
		sink:          sink,
		tracker:       agent.NewSourceTracker(),
		startedAt:     time.Now(),
		temperature:   e.cfg.Temperature,
		maxIterations: e.cfg.MaxIterations,
	}
	if req.Temperature != nil {
		st.temperature = *req.Temperature
	}
	if req.MaxIterations > 0 {
		st.maxIterations = req.MaxIterations
	}

	if e.deps.Tracer != nil {
		var span trace.Span
		ctx, span = e.deps.Tracer.Start(ctx, "engine.turn", observability.SpanOptions{
			Kind: trace.SpanKindServer,
			Attributes: []attribute.KeyValue{
				attribute.String("session_id", e.cfg.SessionID),
				attribute.String("mode", string(req.Mode)),
			},
		})
		defer span.End()
	}

	if _, err := e.machine.SwitchMode(e.log, req.Mode); err != nil {
		return e.fatal(ctx, st, err)
	}

	st.ws = e.workspaceFor(req.Mode)
	if err := st.ws.Init(); err != nil {
		return e.fatal(ctx, st, err)
	}
	if watcher, err := st.ws.StartWatcher(); err == nil {
		defer watcher.Stop()
	} else {
		e.deps.Logger.Debug(ctx, "workspace watcher unavailable", "error", err)
	}
	defer func() {
		if st.tools != nil {
			st.tools.teardown(ctx)
		}
	}()

	st.tools = e.install(ctx, st.ws)

	if err := e.log.AppendUser(req.Message); err != nil {
		return e.fatal(ctx, st, err)
	}

	readyForFinal := false

loop:
	for iteration := 1; iteration <= st.maxIterations; iteration++ {
		if e.deps.Cancel.IsCancelled() {
			return e.cancelled(ctx, st)
		}

		e.deps.Logger.Debug(ctx, "react iteration",
			"session_id", e.cfg.SessionID, "iteration", iteration,
			"mode", e.machine.Mode(), "stage", e.machine.Stage())

		resp, err := e.chatWithRetry(ctx, providers.ChatRequest{
			Model:       e.cfg.Model,
			Messages:    e.log.List(),
			Tools:       st.tools.registry.Specs(),
			ToolChoice:  "auto",
			Temperature: st.temperature,
		})
		if err != nil {
			return e.fatal(ctx, st, err)
		}
		if resp.PromptTokens > 0 {
			st.lastPromptTokens = resp.PromptTokens
		}

		if len(resp.ToolCalls) == 0 {
			if e.machine.Mode() == models.ModeAgent && e.machine.Stage() == models.StageResearch {
				// Tool-calling is mandatory in Research; correct and retry.
				if resp.Content != "" {
					if err := e.log.AppendAssistant(resp.Content, nil); err != nil {
						return e.fatal(ctx, st, err)
					}
				}
				if err := e.log.AppendUser(researchToolRequiredPrompt); err != nil {
					return e.fatal(ctx, st, err)
				}
				continue
			}

			// Chat Mode or Agent/HIL: terminal text.
			final := resp.Content
			if final == "" {
				final = "I don't have a response at this time."
			}
			if err := e.log.AppendAssistant(final, nil); err != nil {
				return e.fatal(ctx, st, err)
			}
			return e.finish(ctx, st, final, nil)
		}

		// Control proposals win over normal tools in the same response
		// (spec §4.8 tie-breaks); the others are discarded.
		if call, ok := findProposal(resp.ToolCalls, "start_research"); ok && e.machine.Stage() == models.StageHIL {
			guidance := e.executeControl(ctx, st, call)
			if guidance == "" {
				guidance = control.ResearchGuidance
			}
			if e.machine.EnterResearch() {
				st.tools.teardown(ctx)
				st.tools = e.install(ctx, st.ws)
				if err := emit(st.sink, models.Event{
					Type:        models.EventStageSwitch,
					StageSwitch: &models.StageSwitchPayload{Stage: models.StageResearch},
				}); err != nil {
					e.deps.Logger.Warn(ctx, "event emit failed", "error", err)
				}
			}
			if err := e.log.AppendUser(guidance); err != nil {
				return e.fatal(ctx, st, err)
			}
			continue
		}

		if call, ok := findProposal(resp.ToolCalls, "stop_answer"); ok {
			e.executeControl(ctx, st, call)
			var prompt string
			if e.machine.Mode() == models.ModeAgent && e.machine.Stage() == models.StageResearch {
				prompt = blogGenerationPrompt(st.ws)
			} else {
				prompt = control.FinalAnswerPrompt
			}
			if err := e.log.AppendUser(prompt); err != nil {
				return e.fatal(ctx, st, err)
			}
			readyForFinal = true
			break loop
		}

		// Normal tools: append the assistant message carrying the
		// proposals, then execute sequentially in list order.
		if err := e.log.AppendAssistant(resp.Content, resp.ToolCalls); err != nil {
			return e.fatal(ctx, st, err)
		}
		for _, call := range resp.ToolCalls {
			if err := e.runTool(ctx, st, call, resp.Content); err != nil {
				return e.fatal(ctx, st, err)
			}
		}

		if st.lastPromptTokens > e.cfg.AutoCompactThreshold {
			e.deps.Logger.Warn(ctx, "prompt tokens over auto-compact threshold, forcing compaction",
				"tokens", st.lastPromptTokens, "threshold", e.cfg.AutoCompactThreshold)
			if _, err := e.compactor().Compact(ctx, e.log, st.ws, e.cfg.KeepRecentUserMessages); err != nil {
				// Compaction failure never terminates the turn (spec §7 kind 9).
				e.deps.Logger.Error(ctx, "forced compaction failed", "error", err)
			}
		}
	}

	if !readyForFinal {
		final := maxIterationsAnswer
		if err := e.log.AppendAssistant(final, nil); err != nil {
			return e.fatal(ctx, st, err)
		}
		return e.finish(ctx, st, final, nil)
	}

	// Final-answer phase: one model call over the current log, no tools.
	final, err := e.finalAnswer(ctx, st)
	if err != nil {
		return e.fatal(ctx, st, err)
	}
	if err := e.log.AppendAssistant(final, nil); err != nil {
		return e.fatal(ctx, st, err)
	}

	var artifact *models.Artifact
	if e.machine.Mode() == models.ModeAgent && e.machine.Stage() == models.StageResearch {
		final, artifact = extractArtifact(final, st.ws)
		e.machine.ResetToHIL()
	}
	return e.finish(ctx, st, final, artifact)
}

// finalAnswer issues the terminal model call, streaming chunk events when
// the caller asked for answer streaming.
func (e *Engine) finalAnswer(ctx context.Context, st *turnState) (string, error) {
	req := providers.ChatRequest{
		Model:       e.cfg.Model,
		Messages:    e.log.List(),
		Temperature: st.temperature,
	}
	if st.req.Stream {
		resp, err := e.deps.Provider.ChatStream(ctx, req, func(chunk providers.StreamChunk) {
			if chunk.Text != "" {
				emit(st.sink, models.Event{Type: models.EventChunk, Chunk: chunk.Text})
			}
		})
		if err != nil {
			return "", err
		}
		if resp.PromptTokens > 0 {
			st.lastPromptTokens = resp.PromptTokens
		}
		return resp.Content, nil
	}
	resp, err := e.chatWithRetry(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.PromptTokens > 0 {
		st.lastPromptTokens = resp.PromptTokens
	}
	return resp.Content, nil
}

// runTool executes one tool-call proposal, applies the post-processing
// contract, emits the ThinkingStep, and appends the matching tool result.
func (e *Engine) runTool(ctx context.Context, st *turnState, call models.ToolCallProposal, reasoning string) error {
	if e.deps.Tracer != nil {
		var span trace.Span
		ctx, span = e.deps.Tracer.TraceToolExecution(ctx, call.Name)
		defer span.End()
	}
	execResult := st.tools.executor.Execute(ctx, call.ID, call.Name, call.Arguments)
	resultText := e.postprocess(st, execResult.Dispatch)

	step := buildThinkingStep(len(st.steps)+1, call, resultText, reasoning)
	st.steps = append(st.steps, step)

	if err := emit(st.sink, models.Event{Type: models.EventThinkingStep, ThinkingStep: &step}); err != nil {
		e.deps.Logger.Warn(ctx, "event emit failed", "error", err)
	}
	return e.log.AppendToolResult(call.ID, resultText)
}

// postprocess applies the per-tool result contract of spec §4.3: search
// envelopes feed the turn's Source tracker and render per-mode, bridge
// envelopes project their success path, everything else falls back to the
// registry's uniform rendering.
func (e *Engine) postprocess(st *turnState, dr agent.DispatchResult) string {
	if dr.Err == nil && dr.Result != nil && dr.Result.Structured != nil {
		switch env := dr.Result.Structured.(type) {
		case agent.SearchEnvelope:
			return st.tracker.Absorb(env, e.machine.Mode())
		case mcp.CallEnvelope:
			if env.Success {
				return env.Content
			}
			return fmt.Sprintf("Error: %s", env.Error)
		}
	}
	return dr.ResultText()
}

// buildThinkingStep derives the observable record of one tool call. The
// success flag is derived textually, never from exception flow (spec §4.8
// tie-breaks).
func buildThinkingStep(stepNum int, call models.ToolCallProposal, resultText, reasoning string) models.ThinkingStep {
	var input any
	inputMap, parsed := parseArguments(call.Arguments)
	if parsed {
		input = inputMap
	} else {
		input = map[string]any{"raw": string(call.Arguments)}
	}

	step := models.ThinkingStep{
		Step:      stepNum,
		Tool:      call.Name,
		Input:     input,
		Output:    resultText,
		Success:   !hasFailurePrefix(resultText),
		Reasoning: reasoning,
	}

	switch call.Name {
	case "web_search":
		if inputMap != nil {
			if u, ok := inputMap["url"].(string); ok {
				step.URLs = []string{u}
			} else if us, ok := inputMap["urls"].([]any); ok {
				for _, v := range us {
					if s, ok := v.(string); ok {
						step.URLs = append(step.URLs, s)
					}
				}
			}
		}
	case "execute_python":
		step.HasCode = true
		lower := strings.ToLower(resultText)
		if strings.Contains(lower, "image") || strings.Contains(lower, "plot") {
			step.HasImage = true
		}
	}
	return step
}

// parseArguments decodes a proposal's raw arguments for display. A decode
// failure is not fatal here; the executor has already surfaced it as the
// tool result.
func parseArguments(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return map[string]any{}, true
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// hasFailurePrefix is the textual success heuristic of spec §3/§4.8.
func hasFailurePrefix(text string) bool {
	if strings.HasPrefix(text, "Failed to") || strings.HasPrefix(text, "Tool execution failed") {
		return true
	}
	return strings.HasPrefix(text, "Tool '") && strings.Contains(text, "' not found")
}

// executeControl runs a control tool (stop_answer / start_research) through
// the registry so the call still honors the tool protocol, returning the
// guidance string from its envelope when present.
func (e *Engine) executeControl(ctx context.Context, st *turnState, call models.ToolCallProposal) string {
	dr := st.tools.registry.Dispatch(ctx, call.Name, call.Arguments)
	if dr.Err != nil || dr.Result == nil {
		return ""
	}
	if m, ok := dr.Result.Structured.(map[string]any); ok {
		if g, ok := m["guidance"].(string); ok {
			return g
		}
	}
	return ""
}

// finish persists the response envelope, emits complete, and cleans the
// workspace (artifact already copied into the envelope, spec §4.2).
func (e *Engine) finish(ctx context.Context, st *turnState, final string, artifact *models.Artifact) error {
	hasCode := false
	hasWeb := false
	for _, s := range st.steps {
		if s.HasCode {
			hasCode = true
		}
		if s.Tool == "web_search" {
			hasWeb = true
		}
	}

	resp := models.ChatResponse{
		ResponseID:       newResponseID(),
		SessionID:        e.cfg.SessionID,
		UserID:           st.req.UserID,
		UserMessage:      st.req.Message,
		AssistantMessage: final,
		Mode:             e.machine.Mode(),
		ThinkingSteps:    st.steps,
		Sources:          st.tracker.Sources(),
		UsedTools:        len(st.steps) > 0,
		HasCode:          hasCode,
		HasWebResults:    hasWeb,
		TotalTimeMS:      time.Since(st.startedAt).Milliseconds(),
		Model:            e.cfg.Model,
		Temperature:      st.temperature,
		PromptTokens:     st.lastPromptTokens,
		Artifact:         artifact,
	}

	if e.deps.History != nil {
		if err := e.deps.History.Append(e.cfg.SessionID, resp); err != nil {
			e.deps.Logger.Error(ctx, "failed to persist chat response", "error", err)
		}
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordLoopIterations(string(e.machine.Mode()), len(st.steps))
		e.deps.Metrics.RecordContextWindow(e.deps.Provider.Name(), e.cfg.Model, st.lastPromptTokens)
	}

	if err := emit(st.sink, models.Event{Type: models.EventComplete, Complete: &resp}); err != nil {
		e.deps.Logger.Warn(ctx, "event emit failed", "error", err)
	}

	e.cleanupWorkspace(ctx, st)
	return nil
}

// cancelled handles the cancellation branch: best-effort workspace
// cleanup, stage reset, one cancelled event, then flag clear (spec §5).
func (e *Engine) cancelled(ctx context.Context, st *turnState) error {
	payload := models.CancelledPayload{
		Message:        "Stopped by user",
		StepsCompleted: len(st.steps),
	}
	if e.machine.Mode() == models.ModeAgent {
		payload.Stage = e.machine.Stage()
		e.machine.ResetToHIL()
	}
	e.cleanupWorkspace(ctx, st)

	err := emit(st.sink, models.Event{Type: models.EventCancelled, Cancelled: &payload})
	e.deps.Cancel.Clear()
	return err
}

// fatal handles a React-loop fatal error: emit error, clean the
// workspace, return (spec §7 kind 10).
func (e *Engine) fatal(ctx context.Context, st *turnState, err error) error {
	e.deps.Logger.Error(ctx, "react loop fatal error",
		"session_id", e.cfg.SessionID, "error", err)
	if e.machine.Mode() == models.ModeAgent {
		e.machine.ResetToHIL()
	}
	e.cleanupWorkspace(ctx, st)
	emit(st.sink, models.Event{
		Type:  models.EventError,
		Error: &models.ErrorPayload{Message: err.Error()},
	})
	return err
}

func (e *Engine) cleanupWorkspace(ctx context.Context, st *turnState) {
	if st.ws == nil {
		return
	}
	if err := st.ws.Cleanup(); err != nil {
		e.deps.Logger.Warn(ctx, "workspace cleanup failed", "error", err)
	}
}

// chatWithRetry wraps the provider call with the bounded retry policy of
// spec §7: network/timeout/rate-limit errors retry with exponential
// backoff over three attempts; authentication, credit, and model errors
// surface immediately.
func (e *Engine) chatWithRetry(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	const attempts = 3
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := e.deps.Provider.Chat(ctx, req)
		if e.deps.Metrics != nil {
			status := "success"
			tokens := 0
			if err != nil {
				status = "error"
			} else {
				tokens = resp.PromptTokens
			}
			e.deps.Metrics.RecordLLMRequest(e.deps.Provider.Name(), e.cfg.Model, status, time.Since(start).Seconds(), tokens, 0)
		}
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableVendorError(err) || attempt == attempts {
			break
		}
		e.deps.Logger.Warn(ctx, "model call failed, retrying",
			"attempt", attempt, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, lastErr
}

// isRetryableVendorError classifies vendor errors per the taxonomy of
// spec §7: kinds 2 and 4 retry, kinds 1 and 3 do not.
func isRetryableVendorError(err error) bool {
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "api key"), strings.Contains(s, "unauthorized"),
		strings.Contains(s, "authentication"), strings.Contains(s, "401"):
		return false
	case strings.Contains(s, "insufficient"), strings.Contains(s, "credit"),
		strings.Contains(s, "model not found"), strings.Contains(s, "model_not_found"):
		return false
	case strings.Contains(s, "rate limit"), strings.Contains(s, "429"),
		strings.Contains(s, "timeout"), strings.Contains(s, "deadline"),
		strings.Contains(s, "connection"), strings.Contains(s, "network"),
		strings.Contains(s, "temporar"), strings.Contains(s, "overloaded"),
		strings.Contains(s, "529"), strings.Contains(s, "503"):
		return true
	default:
		return false
	}
}

// findProposal returns the first proposal named name.
func findProposal(calls []models.ToolCallProposal, name string) (models.ToolCallProposal, bool) {
	for _, c := range calls {
		if c.Name == name {
			return c, true
		}
	}
	return models.ToolCallProposal{}, false
}

func emit(sink events.Sink, event models.Event) error {
	if sink == nil {
		return nil
	}
	return sink.Emit(event)
}

// newResponseID mints the resp_<YYYYMMDD_HHMMSS>_<6-hex> identifier of
// spec §6.
func newResponseID() string {
	var b [3]byte
	rand.Read(b[:])
	return fmt.Sprintf("resp_%s_%s", time.Now().UTC().Format("20060102_150405"), hex.EncodeToString(b[:]))
}

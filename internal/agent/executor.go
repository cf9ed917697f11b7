package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/haasonsaas/researchagent/internal/observability"
)

// ExecutorConfig configures per-call timeout and retry behavior.
type ExecutorConfig struct {
	// DefaultTimeout bounds one tool execution attempt. Default: 30s.
	// Long-running tools (execute_python) override this per tool.
	DefaultTimeout time.Duration

	// DefaultRetries is the retry count for retryable errors. Default: 2.
	DefaultRetries int

	// RetryBackoff is the initial backoff between retries. Default: 100ms.
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the exponential backoff. Default: 5s.
	MaxRetryBackoff time.Duration
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		DefaultTimeout:  30 * time.Second,
		DefaultRetries:  2,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
	}
}

// ToolConfig holds per-tool overrides.
type ToolConfig struct {
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
}

// Executor drives tool calls against a registry with retry, timeout, and
// panic recovery. Calls within one model turn run strictly sequentially in
// list order (spec §5 "Ordering guarantees") so Source index assignment is
// deterministic; there is no fan-out path.
type Executor struct {
	registry   *ToolRegistry
	config     *ExecutorConfig
	toolConfig map[string]*ToolConfig
	metrics    *observability.Metrics
}

// NewExecutor builds an executor over registry. If config is nil,
// DefaultExecutorConfig is used. metrics may be nil.
func NewExecutor(registry *ToolRegistry, config *ExecutorConfig, metrics *observability.Metrics) *Executor {
	if config == nil {
		config = DefaultExecutorConfig()
	}
	return &Executor{
		registry:   registry,
		config:     config,
		toolConfig: make(map[string]*ToolConfig),
		metrics:    metrics,
	}
}

// ConfigureTool sets per-tool overrides for the named tool.
func (e *Executor) ConfigureTool(name string, config *ToolConfig) {
	e.toolConfig[name] = config
}

// ExecutionResult is the outcome of one tool call: the dispatch result
// plus timing and attempt bookkeeping.
type ExecutionResult struct {
	ToolCallID string
	ToolName   string
	Dispatch   DispatchResult
	Duration   time.Duration
	Attempts   int
}

// Execute runs a single tool call. Malformed arguments and unknown tools
// come back as DispatchResult.Err without retries; tool-internal failures
// retry only when their classified type is retryable.
func (e *Executor) Execute(ctx context.Context, callID, name string, rawArgs json.RawMessage) *ExecutionResult {
	start := time.Now()
	result := &ExecutionResult{ToolCallID: callID, ToolName: name}

	timeout := e.config.DefaultTimeout
	maxRetries := e.config.DefaultRetries
	backoff := e.config.RetryBackoff
	if tc, ok := e.toolConfig[name]; ok {
		if tc.Timeout > 0 {
			timeout = tc.Timeout
		}
		if tc.Retries >= 0 {
			maxRetries = tc.Retries
		}
		if tc.RetryBackoff > 0 {
			backoff = tc.RetryBackoff
		}
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result.Attempts = attempt + 1

		dr := e.executeOnce(ctx, name, rawArgs, timeout)
		result.Dispatch = dr

		if dr.Err == nil || !dr.Err.Type.IsRetryable() {
			break
		}
		if attempt == maxRetries {
			break
		}

		wait := backoff * (1 << attempt)
		if wait > e.config.MaxRetryBackoff {
			wait = e.config.MaxRetryBackoff
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			result.Dispatch = DispatchResult{Err: NewToolError(name, ctx.Err()).
				WithType(ToolErrorTimeout).WithToolCallID(callID)}
			result.Duration = time.Since(start)
			return result
		}
	}

	if result.Dispatch.Err != nil {
		result.Dispatch.Err = result.Dispatch.Err.WithToolCallID(callID).WithAttempts(result.Attempts)
	}
	result.Duration = time.Since(start)

	if e.metrics != nil {
		status := "success"
		if result.Dispatch.Failed() {
			status = "error"
		}
		e.metrics.RecordToolExecution(name, status, result.Duration.Seconds())
	}
	return result
}

// executeOnce runs one attempt under a timeout with panic recovery. A
// panicking tool becomes a ToolErrorPanic dispatch error, never an unwound
// goroutine.
func (e *Executor) executeOnce(ctx context.Context, name string, rawArgs json.RawMessage, timeout time.Duration) (dr DispatchResult) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			dr = DispatchResult{Err: (&ToolError{
				ToolName: name,
				Message:  fmt.Sprintf("Tool execution failed: panic: %v", r),
				Cause:    fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
			}).WithType(ToolErrorPanic)}
		}
	}()

	return e.registry.Dispatch(ctx, name, rawArgs)
}

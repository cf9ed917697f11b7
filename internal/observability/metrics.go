package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - LLM request performance and token usage
//   - Tool execution patterns and latencies
//   - React loop iteration counts and compaction triggers
//   - Active and stuck session counts
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.RecordToolExecution("web_search", "success", time.Since(start).Seconds())
type Metrics struct {
	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider (anthropic|openai), model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (loop|tool|mcp|compaction|session), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current active sessions.
	ActiveSessions prometheus.Gauge

	// LoopIterations measures the number of react-loop iterations per turn.
	// Labels: mode (chat|agent)
	LoopIterations *prometheus.HistogramVec

	// CompactionTriggered counts auto-compaction runs by outcome.
	// Labels: outcome (success|error)
	CompactionTriggered *prometheus.CounterVec

	// ContextWindowTokens tracks context window utilization at the point of
	// each turn's completion.
	// Labels: provider, model
	ContextWindowTokens *prometheus.HistogramVec

	// SessionStuck counts sessions that failed to make progress and were reaped.
	SessionStuck prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "researchagent_llm_request_duration_seconds",
				Help:    "Duration of LLM API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "researchagent_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "researchagent_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "researchagent_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "researchagent_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 600},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "researchagent_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "researchagent_active_sessions",
				Help: "Current number of sessions with a loaded engine",
			},
		),

		LoopIterations: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "researchagent_loop_iterations",
				Help:    "Number of react-loop iterations consumed per turn",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 200},
			},
			[]string{"mode"},
		),

		CompactionTriggered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "researchagent_compactions_total",
				Help: "Total number of auto-compaction runs by outcome",
			},
			[]string{"outcome"},
		),

		ContextWindowTokens: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "researchagent_context_window_tokens",
				Help:    "Context window tokens used at turn completion",
				Buckets: []float64{1000, 10000, 50000, 100000, 150000, 200000, 280000, 350000, 400000},
			},
			[]string{"provider", "model"},
		),

		SessionStuck: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "researchagent_sessions_stuck_total",
				Help: "Number of sessions that failed to progress and were reaped",
			},
		),
	}
}

// RecordLLMRequest records metrics for an LLM API request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active sessions gauge.
func (m *Metrics) SessionStarted() {
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active sessions gauge.
func (m *Metrics) SessionEnded() {
	m.ActiveSessions.Dec()
}

// RecordLoopIterations records how many iterations a turn consumed.
func (m *Metrics) RecordLoopIterations(mode string, iterations int) {
	m.LoopIterations.WithLabelValues(mode).Observe(float64(iterations))
}

// RecordCompaction records a compaction run outcome.
func (m *Metrics) RecordCompaction(outcome string) {
	m.CompactionTriggered.WithLabelValues(outcome).Inc()
}

// RecordContextWindow records context window utilization.
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	m.ContextWindowTokens.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}

// RecordSessionStuck records a session detected as stuck and reaped.
func (m *Metrics) RecordSessionStuck() {
	m.SessionStuck.Inc()
}

// Package engine implements the React loop (C8): the reason-act-observe
// controller that binds the Message Log, Workspace, Tool Registry,
// compaction sub-agent, mode/stage machine, and event stream into one
// turn execution path.
package engine

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/compaction"
	"github.com/haasonsaas/researchagent/internal/mcp"
	"github.com/haasonsaas/researchagent/internal/messagelog"
	"github.com/haasonsaas/researchagent/internal/observability"
	"github.com/haasonsaas/researchagent/internal/providers"
	"github.com/haasonsaas/researchagent/internal/tools/sandbox"
	"github.com/haasonsaas/researchagent/internal/tools/websearch"
	"github.com/haasonsaas/researchagent/internal/workspace"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// CancelToken is the narrow cancellation capability handed to the engine
// (spec §9 "Cyclic injection" redesign: the engine sees a flag, not the
// service that owns it). IsCancelled is polled at iteration tops only.
type CancelToken interface {
	IsCancelled() bool
	Clear()
}

// HistoryStore persists one ChatResponse per completed turn.
type HistoryStore interface {
	Append(sessionID string, resp models.ChatResponse) error
}

// Config carries the per-session engine parameters.
type Config struct {
	SessionID  string
	SessionDir string // <data_dir>/chats/<session_id>

	Model       string
	Temperature float64

	MaxIterations          int // default 200
	AutoCompactThreshold   int // default 280_000
	KeepRecentUserMessages int // default 10

	SandboxTimeout time.Duration // default 10m
}

// Deps are the cross-session collaborators, accessed read-only or via
// their own synchronization (spec §5 "Shared-resource policy").
type Deps struct {
	Provider       providers.LLMProvider
	SearchVendor   websearch.Vendor      // nil disables web_search
	SandboxFactory sandbox.RunnerFactory // nil disables execute_python
	Bridge         *mcp.Bridge           // nil disables external-bridge tools
	History        HistoryStore
	Cancel         CancelToken
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
}

// Engine is the per-session engine: one Message Log, one mode/stage
// machine, and the turn executor. Turns on one engine are serialized by
// an internal mutex; different sessions run independently.
type Engine struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	log     *messagelog.Log
	machine *agent.StageMachine
}

// New loads (or initializes) the session's Message Log and returns a
// ready engine.
func New(cfg Config, deps Deps) (*Engine, error) {
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("engine: session id is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 200
	}
	if cfg.AutoCompactThreshold <= 0 {
		cfg.AutoCompactThreshold = 280_000
	}
	if cfg.KeepRecentUserMessages <= 0 {
		cfg.KeepRecentUserMessages = compaction.DefaultKeepRecent
	}
	if cfg.SandboxTimeout <= 0 {
		cfg.SandboxTimeout = 10 * time.Minute
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.LogConfig{Level: "info"})
	}
	if deps.Cancel == nil {
		deps.Cancel = noopCancel{}
	}

	log, err := messagelog.Load(cfg.SessionDir)
	if err != nil {
		return nil, fmt.Errorf("engine: load message log: %w", err)
	}

	return &Engine{
		cfg:     cfg,
		deps:    deps,
		log:     log,
		machine: agent.NewStageMachine(agent.DefaultPromptSet()),
	}, nil
}

// Log exposes the session's Message Log for persistence-level reads
// (clear-session, tests). Mutation stays inside the engine.
func (e *Engine) Log() *messagelog.Log { return e.log }

// Mode returns the current mode.
func (e *Engine) Mode() models.Mode { return e.machine.Mode() }

// Stage returns the current Agent stage.
func (e *Engine) Stage() models.Stage { return e.machine.Stage() }

// Close releases cross-turn resources. The bridge is shared across
// sessions and closed by its owner, not here.
func (e *Engine) Close() error { return nil }

// workspaceFor returns the mode-suffixed workspace handle without
// touching the filesystem (spec §6: workspace_chat / workspace_agent
// siblings under the session directory).
func (e *Engine) workspaceFor(mode models.Mode) *workspace.Workspace {
	suffix := "workspace_chat"
	if mode == models.ModeAgent {
		suffix = "workspace_agent"
	}
	return workspace.New(filepath.Join(e.cfg.SessionDir, suffix))
}

// noopCancel is the default token when no registry wires one in.
type noopCancel struct{}

func (noopCancel) IsCancelled() bool { return false }
func (noopCancel) Clear()            {}

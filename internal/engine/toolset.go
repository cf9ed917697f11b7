package engine

import (
	"context"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/compaction"
	"github.com/haasonsaas/researchagent/internal/tools/control"
	"github.com/haasonsaas/researchagent/internal/tools/files"
	"github.com/haasonsaas/researchagent/internal/tools/sandbox"
	"github.com/haasonsaas/researchagent/internal/tools/subagent"
	"github.com/haasonsaas/researchagent/internal/tools/websearch"
	"github.com/haasonsaas/researchagent/internal/workspace"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// toolset is the per-turn tool wiring: the registry for the current
// mode/stage, the executor over it, and the lazily created sandbox session
// torn down at end of turn.
type toolset struct {
	registry *agent.ToolRegistry
	executor *agent.Executor
	sandbox  *sandbox.Tool
}

// install (re)constructs the registry for the current mode/stage per the
// availability table of spec §4.7. Called at turn start and again on the
// HIL-to-Research stage transition.
func (e *Engine) install(ctx context.Context, ws *workspace.Workspace) *toolset {
	ts := &toolset{registry: agent.NewToolRegistry()}

	searchTool := func() agent.Tool {
		if e.deps.SearchVendor == nil {
			return nil
		}
		return websearch.New(e.deps.SearchVendor, ws)
	}
	sandboxTool := func() agent.Tool {
		if e.deps.SandboxFactory == nil {
			return nil
		}
		if ts.sandbox == nil {
			ts.sandbox = sandbox.NewTool(e.deps.SandboxFactory, ws, e.cfg.SandboxTimeout)
		}
		return ts.sandbox
	}
	register := func(tools ...agent.Tool) {
		for _, t := range tools {
			if t != nil {
				ts.registry.Register(t)
			}
		}
	}

	switch {
	case e.machine.Mode() == models.ModeChat:
		register(searchTool(), sandboxTool(), files.NewReadTool(ws))
		e.registerBridgeTools(ctx, ts.registry)

	case e.machine.Stage() == models.StageResearch:
		register(
			searchTool(),
			sandboxTool(),
			files.NewReadTool(ws),
			files.NewWriteTool(ws),
			files.NewListTool(ws),
			files.NewEditTool(ws),
			subagent.New(e.deps.Provider, ws, e.cfg.Model, e.deps.Logger),
			compaction.NewTool(e.compactor(), e.log, ws),
			control.StopAnswerTool{},
		)
		e.registerBridgeTools(ctx, ts.registry)

	default: // Agent / HIL
		register(searchTool(), control.StartResearchTool{})
	}

	execCfg := agent.DefaultExecutorConfig()
	ts.executor = agent.NewExecutor(ts.registry, execCfg, e.deps.Metrics)
	// The sandbox runs whole analysis scripts; the nested research_assistant
	// loop and the compaction pass also outlive the 30s default, which
	// web_search keeps.
	ts.executor.ConfigureTool("execute_python", &agent.ToolConfig{Timeout: e.cfg.SandboxTimeout, Retries: 0})
	ts.executor.ConfigureTool("research_assistant", &agent.ToolConfig{Timeout: e.cfg.SandboxTimeout, Retries: 0})
	ts.executor.ConfigureTool("compact_context", &agent.ToolConfig{Timeout: e.cfg.SandboxTimeout, Retries: 0})
	return ts
}

// registerBridgeTools connects the external-tool bridge (failures are
// logged and the offending server skipped, spec §4.5) and installs the
// discovered tools under their mcp_<server>_<tool> names.
func (e *Engine) registerBridgeTools(ctx context.Context, registry *agent.ToolRegistry) {
	if e.deps.Bridge == nil {
		return
	}
	connected := e.deps.Bridge.ConnectAll(ctx)
	tools := e.deps.Bridge.Tools()
	for _, t := range tools {
		registry.Register(t)
	}
	if len(tools) > 0 {
		e.deps.Logger.Info(ctx, "installed external-bridge tools",
			"servers", connected, "tools", len(tools))
	}
}

// compactor builds the compaction sub-agent bound to this engine's
// provider and model.
func (e *Engine) compactor() *compaction.Compactor {
	return compaction.NewCompactor(e.deps.Provider, e.cfg.Model, e.deps.Logger, e.deps.Metrics)
}

// teardown releases per-turn tool resources, currently the sandbox session
// (spec §4.4.2: torn down at end of turn).
func (ts *toolset) teardown(ctx context.Context) {
	if ts.sandbox != nil {
		ts.sandbox.Close(ctx)
		ts.sandbox = nil
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/observability"
)

// Bridge manages the full set of configured tool servers: connects them,
// caches their tool lists, exposes each tool as an agent.Tool under the
// mcp_<server>_<tool> name, and tears the children down last-opened
// first-closed (spec §4.5).
type Bridge struct {
	configs []*ServerConfig
	logger  *observability.Logger

	mu      sync.Mutex
	clients map[string]*Client
	// closeStack holds close callbacks in connect order; Close pops it
	// in reverse, the Go rendition of a scope-bound exit stack.
	closeStack []func() error
}

// NewBridge builds a bridge over the static server mapping. Invalid
// configs are rejected up front.
func NewBridge(configs []*ServerConfig, logger *observability.Logger) (*Bridge, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "info"})
	}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("mcp: %w", err)
		}
	}
	return &Bridge{
		configs: configs,
		logger:  logger,
		clients: make(map[string]*Client),
	}, nil
}

// ConnectAll connects every configured server. A failing server is logged
// and skipped; it does not prevent the others from starting. Returns the
// number of servers that connected.
func (b *Bridge) ConnectAll(ctx context.Context) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	connected := 0
	for _, cfg := range b.configs {
		if _, ok := b.clients[cfg.Name]; ok {
			connected++
			continue
		}
		client, err := NewClient(cfg, b.logger)
		if err != nil {
			b.logger.Error(ctx, "failed to build MCP client", "server", cfg.Name, "error", err)
			continue
		}
		if err := client.Connect(ctx); err != nil {
			b.logger.Error(ctx, "failed to connect MCP server", "server", cfg.Name, "error", err)
			continue
		}
		b.clients[cfg.Name] = client
		b.closeStack = append(b.closeStack, client.Close)
		connected++
	}
	return connected
}

// Close tears down all children in reverse connect order, collecting
// errors rather than stopping at the first.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs *multierror.Error
	for i := len(b.closeStack) - 1; i >= 0; i-- {
		if err := b.closeStack[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	b.closeStack = nil
	b.clients = make(map[string]*Client)
	return errs.ErrorOrNil()
}

// Servers returns the names of currently connected servers, sorted.
func (b *Bridge) Servers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.clients))
	for name := range b.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools projects every connected server's tool list into agent.Tool
// entries ready for registry installation, in stable server/tool order.
func (b *Bridge) Tools() []agent.Tool {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []agent.Tool
	names := make([]string, 0, len(b.clients))
	for name := range b.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, server := range names {
		client := b.clients[server]
		for _, st := range client.Tools() {
			out = append(out, &BridgeTool{
				client:     client,
				serverName: server,
				toolName:   st.Name,
				desc:       st.Description,
				schema:     st.InputSchema,
			})
		}
	}
	return out
}

// CallTool addresses one call by (server, tool, args).
func (b *Bridge) CallTool(ctx context.Context, server, tool string, args map[string]any) (*ToolCallResult, error) {
	b.mu.Lock()
	client, ok := b.clients[server]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mcp: server %s not connected", server)
	}
	return client.CallTool(ctx, tool, args)
}

// BridgeToolName composes the registry name for a bridged tool.
func BridgeToolName(server, tool string) string {
	return fmt.Sprintf("mcp_%s_%s", server, tool)
}

// BridgeTool adapts one server tool to the agent.Tool contract — the
// variant wrapping (server, name) from spec §9's tagged-interface redesign.
type BridgeTool struct {
	client     *Client
	serverName string
	toolName   string
	desc       string
	schema     json.RawMessage
}

// Name returns the mcp_<server>_<tool> registry name.
func (t *BridgeTool) Name() string { return BridgeToolName(t.serverName, t.toolName) }

// Description returns the server-advertised description.
func (t *BridgeTool) Description() string {
	if t.desc != "" {
		return t.desc
	}
	return fmt.Sprintf("Tool %s provided by MCP server %s.", t.toolName, t.serverName)
}

// Parameters returns whatever schema the server advertises.
func (t *BridgeTool) Parameters() map[string]any {
	var params map[string]any
	if len(t.schema) > 0 {
		if err := json.Unmarshal(t.schema, &params); err == nil {
			return params
		}
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

// Execute calls the remote tool and projects the result into the uniform
// {success, content|error} envelope expected by the React loop.
func (t *BridgeTool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	result, err := t.client.CallTool(ctx, t.toolName, args)
	if err != nil {
		return &agent.ToolResult{
			Structured: CallEnvelope{Success: false, Error: err.Error(), IsError: true},
			IsError:    true,
		}, nil
	}
	if result.IsError {
		return &agent.ToolResult{
			Structured: CallEnvelope{Success: false, Error: result.Text(), IsError: true},
			IsError:    true,
		}, nil
	}
	return &agent.ToolResult{
		Structured: CallEnvelope{Success: true, Content: result.Text()},
	}, nil
}

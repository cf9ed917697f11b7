package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haasonsaas/researchagent/internal/observability"
)

// Client connects to a single tool server: handshake, tool discovery, and
// multiplexed tool calls.
type Client struct {
	config    *ServerConfig
	transport Transport
	logger    *observability.Logger

	mu         sync.RWMutex
	tools      []*ServerTool
	serverInfo ServerInfo
}

// NewClient builds a client for cfg. The transport is selected by
// cfg.Transport but not yet connected.
func NewClient(cfg *ServerConfig, logger *observability.Logger) (*Client, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "info"})
	}
	return &Client{
		config:    cfg,
		transport: transport,
		logger:    logger.WithFields("mcp_server", cfg.Name),
	}, nil
}

// Connect establishes the transport, performs the initialize handshake,
// and caches the server's tool list.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return fmt.Errorf("mcp: transport connect: %w", err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "researchagent",
			"version": "1.0.0",
		},
	})
	if err != nil {
		c.transport.Close()
		return fmt.Errorf("mcp: initialize: %w", err)
	}

	var initResult InitializeResult
	if err := json.Unmarshal(result, &initResult); err != nil {
		c.transport.Close()
		return fmt.Errorf("mcp: parse initialize result: %w", err)
	}
	c.serverInfo = initResult.ServerInfo

	c.logger.Info(ctx, "connected to MCP server",
		"name", c.serverInfo.Name,
		"version", c.serverInfo.Version,
		"protocol", initResult.ProtocolVersion)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn(ctx, "failed to send initialized notification", "error", err)
	}

	if err := c.RefreshTools(ctx); err != nil {
		c.logger.Warn(ctx, "failed to list tools", "error", err)
	}
	return nil
}

// Close shuts the transport down.
func (c *Client) Close() error {
	return c.transport.Close()
}

// Config returns the server configuration.
func (c *Client) Config() *ServerConfig { return c.config }

// Connected reports whether the transport is up.
func (c *Client) Connected() bool { return c.transport.Connected() }

// RefreshTools re-fetches and caches the server's advertised tool list.
func (c *Client) RefreshTools(ctx context.Context) error {
	result, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		return err
	}
	var resp ListToolsResult
	if err := json.Unmarshal(result, &resp); err != nil {
		return fmt.Errorf("mcp: parse tools/list result: %w", err)
	}
	c.mu.Lock()
	c.tools = resp.Tools
	c.mu.Unlock()
	c.logger.Debug(ctx, "refreshed tools", "count", len(resp.Tools))
	return nil
}

// Tools returns the cached tool list from the last discovery.
func (c *Client) Tools() []*ServerTool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// CallTool invokes a tool on this server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	params := CallToolParams{Name: name}
	if arguments != nil {
		argsJSON, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("mcp: marshal arguments: %w", err)
		}
		params.Arguments = argsJSON
	}

	result, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}
	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("mcp: parse tool result: %w", err)
	}
	return &callResult, nil
}

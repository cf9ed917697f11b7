// Package mcp implements the external-tool bridge (C5): discovery of,
// connection to, and multiplexed invocation against child tool servers
// speaking the Model Context Protocol. Bridged tools surface in the tool
// registry under the mcp_<server>_<tool> naming rule.
package mcp

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// TransportType selects the wire transport for one server.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportGRPC  TransportType = "grpc"
)

// ServerConfig is one entry in the bridge's static server mapping
// (spec §4.5): a logical name plus how to reach the server.
type ServerConfig struct {
	Name      string        `yaml:"name" json:"name"`
	Transport TransportType `yaml:"transport" json:"transport"`

	// Stdio transport options.
	Command string            `yaml:"command" json:"command,omitempty"`
	Args    []string          `yaml:"args" json:"args,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`
	WorkDir string            `yaml:"workdir" json:"workdir,omitempty"`

	// gRPC transport options.
	Address string       `yaml:"address" json:"address,omitempty"`
	OAuth   *OAuthConfig `yaml:"oauth" json:"oauth,omitempty"`

	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// OAuthConfig holds client-credentials settings for servers that gate
// their gRPC facade behind OAuth2.
type OAuthConfig struct {
	TokenURL     string   `yaml:"token_url" json:"token_url"`
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"client_secret"`
	Scopes       []string `yaml:"scopes" json:"scopes,omitempty"`
}

// Validate checks the server configuration before spawning anything.
func (c *ServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("server name is required")
	}
	switch c.Transport {
	case TransportStdio, "":
		if c.Command == "" {
			return fmt.Errorf("stdio config for %s: command is required", c.Name)
		}
		if err := validatePath(c.Command, "command"); err != nil {
			return fmt.Errorf("stdio config for %s: %w", c.Name, err)
		}
		if c.WorkDir != "" {
			if err := validatePath(c.WorkDir, "workdir"); err != nil {
				return fmt.Errorf("stdio config for %s: %w", c.Name, err)
			}
		}
		for i, arg := range c.Args {
			if containsShellMetachars(arg) {
				return fmt.Errorf("stdio config for %s: arg[%d] contains suspicious shell metacharacters: %q", c.Name, i, arg)
			}
		}
	case TransportGRPC:
		if c.Address == "" {
			return fmt.Errorf("grpc config for %s: address is required", c.Name)
		}
	default:
		return fmt.Errorf("server %s: unknown transport %q", c.Name, c.Transport)
	}
	return nil
}

// validatePath checks a path for traversal after cleaning.
func validatePath(path, fieldName string) error {
	if path == "" {
		return nil
	}
	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("%s contains path traversal: %q", fieldName, path)
	}
	return nil
}

// containsShellMetachars flags patterns that suggest command chaining.
// Spaces and quotes are allowed since they are common in legitimate args.
func containsShellMetachars(s string) bool {
	dangerous := []string{"$(", "${", "`", "&&", "||", ";", "|", ">", "<", "\n", "\r"}
	for _, p := range dangerous {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ServerTool is one tool advertised by a connected server; its parameter
// schema is whatever the server declares.
type ServerTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolCallResult is the result shape of tools/call.
type ToolCallResult struct {
	Content []ToolResultContent `json:"content"`
	IsError bool                `json:"isError,omitempty"`
}

// ToolResultContent is one piece of a tool result.
type ToolResultContent struct {
	Type     string `json:"type"` // text | image | resource
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Text concatenates the text parts of the result.
func (r *ToolCallResult) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" && c.Text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// CallEnvelope is the uniform {success, content|error} envelope the React
// loop's post-processing contract expects from bridge tools (spec §4.3).
type CallEnvelope struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	IsError bool   `json:"isError,omitempty"`
}

// JSON-RPC framing.

// JSONRPCRequest is a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCNotification is a JSON-RPC 2.0 notification (no ID).
type JSONRPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// ServerInfo identifies a connected server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// ListToolsResult is the result of tools/list.
type ListToolsResult struct {
	Tools []*ServerTool `json:"tools"`
}

// CallToolParams carries the parameters for tools/call.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

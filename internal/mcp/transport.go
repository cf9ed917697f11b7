package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport is the framed request/response channel to one tool server.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	Notify(ctx context.Context, method string, params any) error
	Connected() bool
}

// NewTransport builds the transport matching cfg.Transport. Stdio is the
// default when unset.
func NewTransport(cfg *ServerConfig) (Transport, error) {
	switch cfg.Transport {
	case TransportStdio, "":
		return NewStdioTransport(cfg), nil
	case TransportGRPC:
		return NewGRPCTransport(cfg), nil
	default:
		return nil, fmt.Errorf("mcp: unknown transport %q for server %s", cfg.Transport, cfg.Name)
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	grpcoauth "google.golang.org/grpc/credentials/oauth"
	"google.golang.org/protobuf/types/known/structpb"
)

// grpcCallMethod is the generic dispatch method exposed by servers that
// front MCP with a gRPC facade: one unary entry point carrying
// the JSON-RPC method and params as a Struct.
const grpcCallMethod = "/mcp.v1.ToolServer/Call"

// GRPCTransport reaches a tool server over a gRPC facade instead of a
// child-process pipe. Hosted servers (a search MCP, a data-warehouse MCP)
// expose this shape; the bridge treats them identically to stdio servers.
type GRPCTransport struct {
	config    *ServerConfig
	conn      *grpc.ClientConn
	connected atomic.Bool
}

// NewGRPCTransport returns an unconnected gRPC transport.
func NewGRPCTransport(cfg *ServerConfig) *GRPCTransport {
	return &GRPCTransport{config: cfg}
}

// Connect dials the server. When OAuth client credentials are configured,
// per-RPC tokens are attached and TLS is required; otherwise the dial is
// plaintext, matching local development servers.
func (t *GRPCTransport) Connect(ctx context.Context) error {
	opts := []grpc.DialOption{}
	if oc := t.config.OAuth; oc != nil {
		cc := &clientcredentials.Config{
			TokenURL:     oc.TokenURL,
			ClientID:     oc.ClientID,
			ClientSecret: oc.ClientSecret,
			Scopes:       oc.Scopes,
		}
		opts = append(opts,
			grpc.WithTransportCredentials(credentials.NewClientTLSFromCert(nil, "")),
			grpc.WithPerRPCCredentials(grpcoauth.TokenSource{TokenSource: cc.TokenSource(ctx)}),
		)
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(t.config.Address, opts...)
	if err != nil {
		return fmt.Errorf("mcp: dial %s: %w", t.config.Address, err)
	}
	t.conn = conn
	t.connected.Store(true)
	return nil
}

// Close tears down the client connection.
func (t *GRPCTransport) Close() error {
	if !t.connected.Swap(false) {
		return nil
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// Call invokes the generic dispatch method with {method, params} and
// returns the server's result payload re-encoded as JSON.
func (t *GRPCTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("mcp: not connected")
	}

	fields := map[string]any{"method": method}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("mcp: marshal params: %w", err)
		}
		var asMap map[string]any
		if err := json.Unmarshal(encoded, &asMap); err != nil {
			return nil, fmt.Errorf("mcp: params must be an object: %w", err)
		}
		fields["params"] = asMap
	}
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("mcp: encode request: %w", err)
	}

	timeout := t.config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply := &structpb.Struct{}
	if err := t.conn.Invoke(ctx, grpcCallMethod, req, reply); err != nil {
		return nil, fmt.Errorf("mcp: invoke %s: %w", method, err)
	}

	out := reply.AsMap()
	if errVal, ok := out["error"]; ok && errVal != nil {
		return nil, fmt.Errorf("mcp: server error: %v", errVal)
	}
	result, err := json.Marshal(out["result"])
	if err != nil {
		return nil, fmt.Errorf("mcp: decode result: %w", err)
	}
	return result, nil
}

// Notify invokes the dispatch method through Call, waiting for the reply
// and discarding its result.
func (t *GRPCTransport) Notify(ctx context.Context, method string, params any) error {
	_, err := t.Call(ctx, method, params)
	return err
}

// Connected reports whether the connection is up.
func (t *GRPCTransport) Connected() bool {
	return t.connected.Load()
}

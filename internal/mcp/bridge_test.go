package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/haasonsaas/researchagent/internal/observability"
)

func TestBridgeToolName(t *testing.T) {
	if got := BridgeToolName("github", "search_issues"); got != "mcp_github_search_issues" {
		t.Errorf("BridgeToolName = %q", got)
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"valid stdio", ServerConfig{Name: "fs", Command: "mcp-server-fs", Args: []string{"--root", "/tmp"}}, false},
		{"missing name", ServerConfig{Command: "x"}, true},
		{"missing command", ServerConfig{Name: "fs", Transport: TransportStdio}, true},
		{"traversal in command", ServerConfig{Name: "fs", Command: "../../bin/sh"}, true},
		{"shell metachars in args", ServerConfig{Name: "fs", Command: "srv", Args: []string{"a; rm -rf /"}}, true},
		{"valid grpc", ServerConfig{Name: "hosted", Transport: TransportGRPC, Address: "localhost:9090"}, false},
		{"grpc without address", ServerConfig{Name: "hosted", Transport: TransportGRPC}, true},
		{"unknown transport", ServerConfig{Name: "x", Transport: "carrier-pigeon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// fakeTransport scripts tool server responses for client tests.
type fakeTransport struct {
	calls     map[string]json.RawMessage
	callErr   map[string]error
	connected bool
}

func (f *fakeTransport) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeTransport) Close() error                      { f.connected = false; return nil }
func (f *fakeTransport) Connected() bool                   { return f.connected }
func (f *fakeTransport) Notify(ctx context.Context, method string, params any) error {
	return nil
}
func (f *fakeTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err, ok := f.callErr[method]; ok {
		return nil, err
	}
	if resp, ok := f.calls[method]; ok {
		return resp, nil
	}
	return nil, fmt.Errorf("unexpected method %s", method)
}

func testClient(transport Transport) *Client {
	return &Client{
		config:    &ServerConfig{Name: "fake"},
		transport: transport,
		logger:    testLogger(),
	}
}

func TestClientConnectDiscoversTools(t *testing.T) {
	ft := &fakeTransport{calls: map[string]json.RawMessage{
		"initialize": json.RawMessage(`{"protocolVersion":"2024-11-05","serverInfo":{"name":"fake","version":"1.0"}}`),
		"tools/list": json.RawMessage(`{"tools":[{"name":"echo","description":"Echoes input","inputSchema":{"type":"object"}}]}`),
	}}
	c := testClient(ft)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	tools := c.Tools()
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("tools = %+v", tools)
	}
}

func TestBridgeToolExecuteEnvelope(t *testing.T) {
	ft := &fakeTransport{connected: true, calls: map[string]json.RawMessage{
		"tools/call": json.RawMessage(`{"content":[{"type":"text","text":"hello"},{"type":"text","text":"world"}]}`),
	}}
	bt := &BridgeTool{client: testClient(ft), serverName: "fake", toolName: "echo"}

	if bt.Name() != "mcp_fake_echo" {
		t.Errorf("Name = %q", bt.Name())
	}
	result, err := bt.Execute(context.Background(), map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	env, ok := result.Structured.(CallEnvelope)
	if !ok {
		t.Fatalf("Structured = %T, want CallEnvelope", result.Structured)
	}
	if !env.Success || env.Content != "hello\nworld" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestBridgeToolExecuteErrorEnvelope(t *testing.T) {
	ft := &fakeTransport{connected: true, calls: map[string]json.RawMessage{
		"tools/call": json.RawMessage(`{"isError":true,"content":[{"type":"text","text":"boom"}]}`),
	}}
	bt := &BridgeTool{client: testClient(ft), serverName: "fake", toolName: "echo"}

	result, err := bt.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	env := result.Structured.(CallEnvelope)
	if env.Success || env.Error != "boom" || !result.IsError {
		t.Errorf("envelope = %+v, result = %+v", env, result)
	}
}

func TestBridgeCloseIsLIFO(t *testing.T) {
	b := &Bridge{clients: map[string]*Client{}}
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		n := name
		b.closeStack = append(b.closeStack, func() error {
			order = append(order, n)
			return nil
		})
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(order) != 3 || order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Errorf("close order = %v, want LIFO", order)
	}
}

func TestBridgeCloseCollectsErrors(t *testing.T) {
	b := &Bridge{clients: map[string]*Client{}}
	b.closeStack = append(b.closeStack,
		func() error { return fmt.Errorf("first") },
		func() error { return nil },
		func() error { return fmt.Errorf("last") },
	)
	err := b.Close()
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	for _, want := range []string{"first", "last"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("aggregated error missing %q: %v", want, err)
		}
	}
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error", Output: io.Discard})
}

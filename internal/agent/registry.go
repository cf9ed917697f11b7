package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool name/parameter limits to prevent resource exhaustion, carried
// forward from the teacher's registry (internal/agent/tool_registry.go).
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20
)

// ToolRegistry is a thread-safe name→Tool map. It is (re)constructed at
// stage transitions within Agent mode (spec §4.3).
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds or replaces a tool by name.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	delete(r.schemas, t.Name())
}

// Unregister removes a tool by name, if present.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	delete(r.schemas, name)
}

// Reset replaces the entire tool set, used when a stage transition installs
// a new available-tool set (spec §4.7's table).
func (r *ToolRegistry) Reset(tools []Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]Tool, len(tools))
	r.schemas = make(map[string]*jsonschema.Schema)
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// schemaFor lazily compiles and caches the tool's declared parameter
// schema. A schema that fails to compile (some external servers advertise
// loose shapes) disables validation for that tool rather than blocking it.
func (r *ToolRegistry) schemaFor(name string, tool Tool) *jsonschema.Schema {
	r.mu.Lock()
	defer r.mu.Unlock()
	if schema, ok := r.schemas[name]; ok {
		return schema
	}
	var schema *jsonschema.Schema
	if raw, err := json.Marshal(tool.Parameters()); err == nil {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name+".json", bytes.NewReader(raw)); err == nil {
			schema, _ = compiler.Compile(name + ".json")
		}
	}
	r.schemas[name] = schema
	return schema
}

// Get returns the tool registered under name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs publishes the registered tool set in the vendor's function-calling
// shape, in a stable name-sorted order.
func (r *ToolRegistry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	specs := make([]Spec, 0, len(names))
	for _, n := range names {
		specs = append(specs, ToSpec(r.tools[n]))
	}
	return specs
}

// DispatchResult is the sum-typed outcome of dispatching one tool-call
// proposal: either a successful ToolResult, or a classified Err describing
// why the call never reached the tool (malformed arguments, unknown tool).
// The React loop consumes both arms uniformly (spec §9).
type DispatchResult struct {
	Result *ToolResult
	Err    *ToolError
}

// Dispatch parses rawArgs, looks up name, and executes it. It never returns
// a Go error: malformed arguments, an unknown tool name and execution
// failures all become DispatchResult.Err per the spec's error taxonomy
// (kinds 5 and 6).
func (r *ToolRegistry) Dispatch(ctx context.Context, name string, rawArgs json.RawMessage) DispatchResult {
	if len(name) > MaxToolNameLength {
		return DispatchResult{Err: (&ToolError{ToolName: name, Message: "tool name exceeds maximum length"}).WithType(ToolErrorInvalidInput)}
	}
	if len(rawArgs) > MaxToolParamsSize {
		return DispatchResult{Err: (&ToolError{ToolName: name, Message: "tool parameters exceed maximum size"}).WithType(ToolErrorInvalidInput)}
	}

	var args map[string]any
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return DispatchResult{Err: (&ToolError{
				ToolName: name,
				Message:  fmt.Sprintf("Failed to parse tool arguments: %v", err),
			}).WithType(ToolErrorInvalidInput)}
		}
	}

	tool, ok := r.Get(name)
	if !ok {
		return DispatchResult{Err: (&ToolError{
			ToolName: name,
			Message:  fmt.Sprintf("Tool '%s' not found", name),
		}).WithType(ToolErrorNotFound)}
	}

	if schema := r.schemaFor(name, tool); schema != nil {
		var doc any = map[string]any{}
		if args != nil {
			doc = args
		}
		if err := schema.Validate(doc); err != nil {
			return DispatchResult{Err: (&ToolError{
				ToolName: name,
				Message:  fmt.Sprintf("Failed to parse tool arguments: %v", err),
			}).WithType(ToolErrorInvalidInput)}
		}
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return DispatchResult{Err: NewToolError(name, err).WithMessage(fmt.Sprintf("Tool execution failed: %v", err))}
	}
	return DispatchResult{Result: result}
}

// ResultText renders dr uniformly into the text that goes back to the model
// as a tool-role message, applying the post-processing contract of §4.3:
// structured results are serialized as indented JSON, strings pass through,
// errors render as the fixed-prefix strings the spec's success heuristic
// (§3 ThinkingStep, §4.9 supplemented features) keys off of.
func (dr DispatchResult) ResultText() string {
	if dr.Err != nil {
		return dr.Err.Message
	}
	if dr.Result == nil {
		return ""
	}
	if dr.Result.Structured != nil {
		b, err := json.MarshalIndent(dr.Result.Structured, "", "  ")
		if err != nil {
			return fmt.Sprintf("Tool execution failed: %v", err)
		}
		return string(b)
	}
	return dr.Result.Content
}

// Failed reports whether dr represents a failure by the textual heuristic
// of spec §4.9: output beginning with "Failed to", "Tool execution failed",
// or matching "Tool '...' not found", OR an explicit IsError/Err arm.
func (dr DispatchResult) Failed() bool {
	if dr.Err != nil {
		return true
	}
	if dr.Result != nil && dr.Result.IsError {
		return true
	}
	text := dr.ResultText()
	if strings.HasPrefix(text, "Failed to") || strings.HasPrefix(text, "Tool execution failed") {
		return true
	}
	if strings.HasPrefix(text, "Tool '") && strings.Contains(text, "' not found") {
		return true
	}
	return false
}

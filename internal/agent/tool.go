package agent

import "context"

// Tool is the uniform call contract for built-in and externally-provided
// tools (C3). External-bridge tools wrap (server, name) behind the same
// four operations, per spec §9's tagged-interface redesign.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON-Schema-shaped parameter specification
	// published to the model in the vendor's function-calling shape.
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (*ToolResult, error)
}

// ToolResult is the output of a tool execution. Content is either a plain
// string (Structured == nil) or a structured record serialized as indented
// JSON by the registry's result post-processing (spec §4.3).
type ToolResult struct {
	Content    string
	Structured any
	IsError    bool
}

// Spec is the vendor-shape publication of a tool: the function-calling
// envelope `{type: "function", function: {name, description, parameters}}`.
type Spec struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec is the nested function description inside a Spec.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToSpec projects a Tool to its vendor-facing Spec.
func ToSpec(t Tool) Spec {
	return Spec{
		Type: "function",
		Function: FunctionSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		},
	}
}

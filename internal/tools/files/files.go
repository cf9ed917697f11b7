// Package files implements the file_read, file_write, file_list, and
// file_edit built-in tools (C4.4.3): thin wrappers over internal/workspace
// that delegate path containment to the Workspace itself.
package files

import (
	"context"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/workspace"
)

// ReadTool implements file_read.
type ReadTool struct {
	ws *workspace.Workspace
}

// NewReadTool returns a file_read tool bound to ws.
func NewReadTool(ws *workspace.Workspace) *ReadTool { return &ReadTool{ws: ws} }

func (t *ReadTool) Name() string { return "file_read" }
func (t *ReadTool) Description() string {
	return "Read the contents of a file in the session workspace."
}

func (t *ReadTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Workspace-relative path to read"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return &agent.ToolResult{Content: "Failed to parse tool arguments: path is required", IsError: true}, nil
	}
	content, err := t.ws.Read(path)
	if err != nil {
		return &agent.ToolResult{Structured: map[string]any{"success": false, "error": err.Error()}, IsError: true}, nil
	}
	return &agent.ToolResult{Structured: map[string]any{"success": true, "content": content}}, nil
}

// WriteTool implements file_write.
type WriteTool struct {
	ws *workspace.Workspace
}

// NewWriteTool returns a file_write tool bound to ws.
func NewWriteTool(ws *workspace.Workspace) *WriteTool { return &WriteTool{ws: ws} }

func (t *WriteTool) Name() string { return "file_write" }
func (t *WriteTool) Description() string {
	return "Write or append content to a file in the session workspace."
}

func (t *WriteTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "Workspace-relative path to write"},
			"content": map[string]any{"type": "string", "description": "Content to write"},
			"append":  map[string]any{"type": "boolean", "description": "Append instead of overwrite", "default": false},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	if path == "" {
		return &agent.ToolResult{Content: "Failed to parse tool arguments: path is required", IsError: true}, nil
	}
	appendMode, _ := args["append"].(bool)
	if err := t.ws.Write(path, content, appendMode); err != nil {
		return &agent.ToolResult{Structured: map[string]any{"success": false, "error": err.Error()}, IsError: true}, nil
	}
	return &agent.ToolResult{Structured: map[string]any{"success": true, "path": path, "bytes_written": len(content)}}, nil
}

// ListTool implements file_list.
type ListTool struct {
	ws *workspace.Workspace
}

// NewListTool returns a file_list tool bound to ws.
func NewListTool(ws *workspace.Workspace) *ListTool { return &ListTool{ws: ws} }

func (t *ListTool) Name() string { return "file_list" }
func (t *ListTool) Description() string {
	return "Recursively list files and directories in the session workspace with sizes."
}

func (t *ListTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Workspace-relative directory to list; defaults to the workspace root", "default": ""},
		},
	}
}

func (t *ListTool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	path, _ := args["path"].(string)
	entries, err := t.ws.List(path)
	if err != nil {
		return &agent.ToolResult{Structured: map[string]any{"success": false, "error": err.Error()}, IsError: true}, nil
	}
	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]any{"path": e.Path, "size": e.Size, "is_dir": e.IsDir})
	}
	return &agent.ToolResult{Structured: map[string]any{"success": true, "entries": rows}}, nil
}

// EditTool implements file_edit.
type EditTool struct {
	ws *workspace.Workspace
}

// NewEditTool returns a file_edit tool bound to ws.
func NewEditTool(ws *workspace.Workspace) *EditTool { return &EditTool{ws: ws} }

func (t *EditTool) Name() string { return "file_edit" }
func (t *EditTool) Description() string {
	return "Replace a single occurrence of old_text with new_text in a workspace file. Fails if old_text is missing or ambiguous."
}

func (t *EditTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":     map[string]any{"type": "string", "description": "Workspace-relative path to edit"},
			"old_text": map[string]any{"type": "string", "description": "Exact text to replace; must occur exactly once"},
			"new_text": map[string]any{"type": "string", "description": "Replacement text"},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *EditTool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	path, _ := args["path"].(string)
	oldText, _ := args["old_text"].(string)
	newText, _ := args["new_text"].(string)
	if path == "" || oldText == "" {
		return &agent.ToolResult{Content: "Failed to parse tool arguments: path and old_text are required", IsError: true}, nil
	}
	if err := t.ws.Edit(path, oldText, newText); err != nil {
		return &agent.ToolResult{Structured: map[string]any{"success": false, "error": err.Error()}, IsError: true}, nil
	}
	return &agent.ToolResult{Structured: map[string]any{"success": true, "path": path}}, nil
}

var _ agent.Tool = (*ReadTool)(nil)
var _ agent.Tool = (*WriteTool)(nil)
var _ agent.Tool = (*ListTool)(nil)
var _ agent.Tool = (*EditTool)(nil)

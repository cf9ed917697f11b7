// Package sandbox implements the execute_python built-in tool (C4.4.2). The
// actual code-execution backend is an external collaborator per spec §1
// ("assumed to expose RunCode(src) -> {text, artifacts[]}"); this package
// owns the lazy per-turn session reuse, the 10-minute wall-clock ceiling,
// and the sequence-numbered artifact file writers, and dispatches the
// actual run through the Runner seam.
package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/workspace"
)

// DefaultTimeout is the fixed 10-minute wall-clock ceiling from spec §4.4.2.
const DefaultTimeout = 10 * time.Minute

// ArtifactKind classifies a produced file by the directory it belongs under
// (spec §4.4.2: analysis/{images,data,reports}).
type ArtifactKind string

const (
	KindImage  ArtifactKind = "images"
	KindData   ArtifactKind = "data"
	KindReport ArtifactKind = "reports"
)

// RawArtifact is one file produced by a RunCode call, before it is written
// under the workspace's analysis/ tree and assigned a sequential name.
type RawArtifact struct {
	Kind ArtifactKind
	Ext  string // "png", "jpeg", "svg", "json", "csv", "html", "md", "pdf"
	Data []byte
}

// RunResult is the neutral shape the external sandbox vendor returns (spec
// §1's RunCode(src) -> {text, artifacts[]}).
type RunResult struct {
	Success   bool
	Output    string
	Error     string
	Artifacts []RawArtifact
}

// Runner is the external code-execution sandbox boundary (spec §1:
// out-of-scope, interface-only).
type Runner interface {
	RunCode(ctx context.Context, code string) (*RunResult, error)
	Close(ctx context.Context) error
}

// RunnerFactory lazily creates a Runner, invoked once per turn (spec
// §4.4.2 "lazily creates, then reuses across calls within the same turn").
type RunnerFactory func(ctx context.Context) (Runner, error)

// FileRecord describes one artifact persisted to the workspace, returned to
// the model in the tool's result envelope.
type FileRecord struct {
	Path   string  `json:"path"`
	Type   string  `json:"type"`
	SizeKB float64 `json:"size_kb"`
}

// Envelope is the execute_python structured result (spec §4.4.2).
type Envelope struct {
	Success        bool         `json:"success"`
	Output         string       `json:"output"`
	Error          string       `json:"error,omitempty"`
	FilesGenerated []FileRecord `json:"files_generated,omitempty"`
	ExecutionTime  float64      `json:"execution_time"`
}

// Tool implements agent.Tool for execute_python. A Tool is bound to one
// turn: NewTool is called fresh per turn so the lazily-created Runner
// session is torn down when the turn ends (Close).
type Tool struct {
	factory RunnerFactory
	ws      *workspace.Workspace
	timeout time.Duration

	mu     sync.Mutex
	runner Runner
}

// NewTool returns an execute_python tool bound to ws, lazily constructing
// its sandbox session via factory on first call within the turn.
func NewTool(factory RunnerFactory, ws *workspace.Workspace, timeout time.Duration) *Tool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tool{factory: factory, ws: ws, timeout: timeout}
}

func (t *Tool) Name() string { return "execute_python" }
func (t *Tool) Description() string {
	return "Execute Python code in a sandboxed session, persisting generated plots, data, and reports to the workspace."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{"type": "string", "description": "Python source to execute"},
		},
		"required": []string{"code"},
	}
}

// Close tears down the sandbox session at end of turn (spec §4.4.2).
func (t *Tool) Close(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runner == nil {
		return nil
	}
	err := t.runner.Close(ctx)
	t.runner = nil
	return err
}

func (t *Tool) getRunner(ctx context.Context) (Runner, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runner != nil {
		return t.runner, nil
	}
	r, err := t.factory(ctx)
	if err != nil {
		return nil, err
	}
	t.runner = r
	return r, nil
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	code, _ := args["code"].(string)
	if code == "" {
		return &agent.ToolResult{Content: "Failed to parse tool arguments: code is required", IsError: true}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	runner, err := t.getRunner(runCtx)
	if err != nil {
		return &agent.ToolResult{Structured: Envelope{Success: false, Error: err.Error()}, IsError: true}, nil
	}

	start := time.Now()
	res, err := runner.RunCode(runCtx, code)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return &agent.ToolResult{Structured: Envelope{Success: false, Error: err.Error(), ExecutionTime: elapsed}, IsError: true}, nil
	}

	env := Envelope{Success: res.Success, Output: res.Output, Error: res.Error, ExecutionTime: elapsed}
	if !res.Success {
		return &agent.ToolResult{Structured: env, IsError: true}, nil
	}

	for _, a := range res.Artifacts {
		rec, err := t.persistArtifact(a)
		if err != nil {
			continue
		}
		env.FilesGenerated = append(env.FilesGenerated, rec)
	}
	return &agent.ToolResult{Structured: env}, nil
}

func (t *Tool) persistArtifact(a RawArtifact) (FileRecord, error) {
	prefix := kindPrefix(a.Kind)
	dir := filepath.Join("analysis", string(a.Kind))
	seq, err := nextSequence(t.ws, dir, prefix)
	if err != nil {
		return FileRecord{}, err
	}
	name := fmt.Sprintf("%s_%03d.%s", prefix, seq, a.Ext)
	rel := filepath.Join(dir, name)
	if err := t.ws.Write(rel, string(a.Data), false); err != nil {
		return FileRecord{}, err
	}
	return FileRecord{Path: rel, Type: a.Ext, SizeKB: float64(len(a.Data)) / 1024.0}, nil
}

func kindPrefix(k ArtifactKind) string {
	switch k {
	case KindImage:
		return "plot"
	case KindReport:
		return "report"
	default:
		return "output"
	}
}

var seqPattern = regexp.MustCompile(`_(\d+)\.`)

// nextSequence scans dir's existing filenames starting with prefix and
// derives the next sequence number by taking the max found + 1, so
// numbering continues after gaps rather than restarting (spec §4.4.2's
// boundary test).
func nextSequence(ws *workspace.Workspace, dir, prefix string) (int, error) {
	entries, err := ws.List(dir)
	if err != nil {
		// A missing directory means no prior artifacts; start at 1.
		return 1, nil
	}
	max := 0
	for _, e := range entries {
		base := filepath.Base(e.Path)
		if !strings.HasPrefix(base, prefix+"_") {
			continue
		}
		m := seqPattern.FindStringSubmatch(base)
		if len(m) != 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

var _ agent.Tool = (*Tool)(nil)

package engine

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/haasonsaas/researchagent/internal/workspace"
)

const sampleHTML = `<!DOCTYPE html>
<html lang="en"><head><style>body{}</style></head>
<body><h1>Quorum <em>Tuning</em></h1><p>Body.</p></body></html>`

func testWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws := workspace.New(filepath.Join(t.TempDir(), "ws"))
	if err := ws.Init(); err != nil {
		t.Fatal(err)
	}
	return ws
}

func TestExtractArtifactFenced(t *testing.T) {
	ws := testWorkspace(t)
	text := "Here is the overview paragraph.\n\n```html\n" + sampleHTML + "\n```\n"

	overview, artifact := extractArtifact(text, ws)
	if artifact == nil {
		t.Fatal("expected artifact")
	}
	if artifact.Title != "Quorum Tuning" {
		t.Errorf("title = %q (tags must be stripped)", artifact.Title)
	}
	if !strings.HasPrefix(artifact.HTMLContent, "<!DOCTYPE html>") {
		t.Errorf("html = %q", artifact.HTMLContent[:40])
	}
	if overview != "Here is the overview paragraph." {
		t.Errorf("overview = %q", overview)
	}
	if artifact.WorkspacePath != "artifact.html" {
		t.Errorf("workspace path = %q", artifact.WorkspacePath)
	}
	written, err := ws.Read("artifact.html")
	if err != nil || written != artifact.HTMLContent {
		t.Errorf("artifact.html not written correctly: %v", err)
	}
}

func TestExtractArtifactBare(t *testing.T) {
	ws := testWorkspace(t)
	text := "Prose first.\n" + sampleHTML

	overview, artifact := extractArtifact(text, ws)
	if artifact == nil {
		t.Fatal("expected artifact from bare doctype span")
	}
	if overview != "Prose first." {
		t.Errorf("overview = %q", overview)
	}
}

func TestExtractArtifactNone(t *testing.T) {
	overview, artifact := extractArtifact("Just a plain answer.", nil)
	if artifact != nil {
		t.Fatalf("unexpected artifact: %+v", artifact)
	}
	if overview != "Just a plain answer." {
		t.Errorf("overview = %q", overview)
	}
}

func TestExtractArtifactHTMLOnly(t *testing.T) {
	ws := testWorkspace(t)
	_, artifact := extractArtifact(sampleHTML, ws)
	if artifact == nil {
		t.Fatal("expected artifact")
	}
	// With no surrounding prose the overview falls back to a stock line.
	overview, _ := extractArtifact(sampleHTML, ws)
	if overview == "" {
		t.Errorf("overview must never be empty when an artifact is extracted")
	}
}

package engine

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/researchagent/internal/workspace"
	"github.com/haasonsaas/researchagent/pkg/models"
)

var (
	fencedHTMLRe = regexp.MustCompile(`(?is)` + "```html" + `\s*(<!DOCTYPE html>.*?</html>)\s*` + "```")
	bareHTMLRe   = regexp.MustCompile(`(?is)<!DOCTYPE html>.*?</html>`)
	h1Re         = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
)

// extractArtifact locates an HTML block in the final Research-stage text:
// either wrapped in triple-backtick html fences or a bare
// <!DOCTYPE html>...</html> span. On a match it writes artifact.html into
// the workspace, strips the block from the answer (leaving the prose
// overview), and returns the Artifact record. Without a match the full
// text stands as the answer (spec §4.8 step 7).
func extractArtifact(finalText string, ws *workspace.Workspace) (overview string, artifact *models.Artifact) {
	if !strings.Contains(finalText, "<!DOCTYPE html>") {
		return finalText, nil
	}

	var htmlCode string
	var start, end int
	if m := fencedHTMLRe.FindStringSubmatchIndex(finalText); m != nil {
		htmlCode = strings.TrimSpace(finalText[m[2]:m[3]])
		start, end = m[0], m[1]
	} else if m := bareHTMLRe.FindStringIndex(finalText); m != nil {
		htmlCode = strings.TrimSpace(finalText[m[0]:m[1]])
		start, end = m[0], m[1]
	} else {
		return finalText, nil
	}

	title := "Research Report"
	if tm := h1Re.FindStringSubmatch(htmlCode); tm != nil {
		if t := strings.TrimSpace(tagRe.ReplaceAllString(tm[1], "")); t != "" {
			title = t
		}
	}

	workspacePath := ""
	if ws != nil {
		if err := ws.Write("artifact.html", htmlCode, false); err == nil {
			workspacePath = "artifact.html"
		}
	}

	overview = strings.TrimSpace(finalText[:start] + finalText[end:])
	overview = strings.ReplaceAll(overview, "```html", "")
	overview = strings.TrimSpace(strings.ReplaceAll(overview, "```", ""))
	if overview == "" {
		overview = "Research completed. See the full report below."
	}

	return overview, &models.Artifact{
		Type:          "html_blog",
		Title:         title,
		HTMLContent:   htmlCode,
		WorkspacePath: workspacePath,
		SizeKB:        float64(len(htmlCode)) / 1024,
	}
}

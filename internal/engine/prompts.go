package engine

import (
	"fmt"

	"github.com/haasonsaas/researchagent/internal/workspace"
)

// researchToolRequiredPrompt corrects the model when it returns plain text
// in the Research stage, where tool-calling is mandatory (spec §4.8 step 5).
const researchToolRequiredPrompt = `ERROR: In the research stage you must call tools.

RULES:
1. Need more information -> call web_search, execute_python, file_write, and so on.
2. Ready to answer -> call stop_answer.

What tool do you want to use?`

// maxIterationsAnswer is the terminal text when the loop exhausts
// MAX_ITERATIONS without stop_answer (spec §8 boundary tests).
const maxIterationsAnswer = "I need more iterations to complete this request."

// blogGenerationPrompt builds the HTML-report prompt injected after
// stop_answer in the Research stage, pre-populated with the current
// contents of draft.md and notes.md (spec §4.8 step 5).
func blogGenerationPrompt(ws *workspace.Workspace) string {
	draft, notes := "", ""
	if ws != nil {
		draft, _ = ws.Read("draft.md")
		notes, _ = ws.Read("notes.md")
	}

	return fmt.Sprintf(`Research completed! Your research materials are provided below.

## Your Research Materials

### draft.md (your organized research with citations):
---
%s
---

### notes.md (additional insights and observations):
---
%s
---

## Now Generate the HTML Report

Use the materials above as your primary source; they represent the full research process, so do not rely on memory alone.

Produce two deliverables:

### Deliverable 1: Brief overview (2-3 paragraphs)
A concise summary of the key findings, telling the reader there is a full report below.

### Deliverable 2: Deep technical report (HTML)
A comprehensive self-contained article in the register of a high-quality Medium or Substack piece. Structure: title and executive summary; introduction and context; core analysis broken into clear sections with headings; deep dives; practical implications; conclusion; references.

Technical requirements:
- All CSS inline in a <style> tag, all JavaScript inline in a <script> tag, no external dependencies.
- Semantic HTML5 with a proper heading hierarchy starting at <h1>.
- Responsive, readable layout: max content width 800px, system font stack, line-height 1.6.
- References must be clickable <a> links with real URLs, listed in an ordered list at the end.

Output format: first the brief overview text, then the complete HTML in a code block:

`+"```html"+`
<!DOCTYPE html>
<html lang="en">
...your complete HTML here...
</html>
`+"```", draft, notes)
}

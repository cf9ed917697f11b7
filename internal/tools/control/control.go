// Package control holds the two signal tools the React loop handles
// specially: stop_answer ends the tool-calling phase, start_research
// drives the HIL-to-Research stage transition.
package control

import (
	"context"

	"github.com/haasonsaas/researchagent/internal/agent"
)

// Signal values returned by the control tools. The React loop keys its
// special handling off the tool name, not these values; they exist so the
// envelopes round-trip as data.
const (
	SignalStopAndAnswer    = "STOP_AND_ANSWER"
	SignalSwitchToResearch = "SWITCH_TO_RESEARCH"
)

// FinalAnswerPrompt is injected after stop_answer in the HIL stage and in
// Chat-adjacent flows: the generic prompt for the final-answer phase.
const FinalAnswerPrompt = "Based on all the information gathered above, please provide a comprehensive answer to the user's query. Include relevant citations and references to the sources you've accessed. Structure your response clearly and be thorough."

// ResearchGuidance is the guidance prompt appended as a user message when
// start_research fires, so the model sees the instructions for the new
// stage before its next turn.
const ResearchGuidance = `Research Mode Activated - Full Tools Available

Your mission: become an expert on this topic through deep, exploratory research.

### 1. Search expansively
- Do not just search the obvious keywords; search related concepts, opposing views, and historical context.
- Follow the thread: when a result mentions something interesting, search deeper into that specific aspect.
- Keep searching until you feel confident. Complex topics need many searches.

### 2. Read full articles, not snippets
- Snippets lack context. Use file_read(path="cache/<article>.md") to read the full cached article.
- Use research_assistant as a reading buddy: ask it to read an article and summarize, then read the key parts yourself.

### 3. Write as you learn
- Start notes.md early; jot down insights as you read.
- Update progress.md so you do not lose the thread.
- Draft sections of draft.md as you go, with [1][2] citations, not all at once at the end.

### 4. Go deep
- Quality over speed. Many tool calls is a sign of thorough research, not waste.
- Multiple research_assistant conversations are fine.

## Workflow
1. Broad search to identify key sources.
2. Deep read with file_read and research_assistant.
3. Document insights in notes.md.
4. Expand searches to fill gaps.
5. Repeat until you feel like an expert.
6. Synthesize everything into draft.md.
7. Call stop_answer when ready to generate the final report.

You must call a tool on every turn in this stage. Call compact_context if the conversation grows unwieldy.`

// StopAnswerTool signals the loop to exit the tool-calling phase and enter
// final-answer generation. Takes no arguments.
type StopAnswerTool struct{}

func (StopAnswerTool) Name() string { return "stop_answer" }

func (StopAnswerTool) Description() string {
	return "Call this tool when you have gathered enough information and are ready to provide a comprehensive final answer to the user. This ends the tool-calling loop and generates the final response."
}

func (StopAnswerTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}
}

func (StopAnswerTool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	return &agent.ToolResult{Structured: map[string]any{
		"signal": SignalStopAndAnswer,
		"prompt": FinalAnswerPrompt,
	}}, nil
}

// StartResearchTool signals the HIL-to-Research stage switch. Only
// registered in the Agent/HIL stage; takes no arguments.
type StartResearchTool struct{}

func (StartResearchTool) Name() string { return "start_research" }

func (StartResearchTool) Description() string {
	return "Call this immediately after the user responds to your clarifying questions. This is the required transition from the confirmation phase to deep research: do not wait for specific keywords and do not ask whether to start. The moment the user responds after your clarifying questions, call this tool."
}

func (StartResearchTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
		"required":   []string{},
	}
}

func (StartResearchTool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	return &agent.ToolResult{Structured: map[string]any{
		"signal":   SignalSwitchToResearch,
		"guidance": ResearchGuidance,
	}}, nil
}

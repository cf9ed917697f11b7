package agent

import (
	"fmt"
	"time"

	"github.com/haasonsaas/researchagent/internal/messagelog"
	"github.com/haasonsaas/researchagent/pkg/models"
)

// PromptSet supplies the system-prompt templates instantiated on mode
// switches. Templates receive the current UTC date (spec §4.7).
type PromptSet struct {
	ChatTemplate          func(date string) string
	AgentHILTemplate      func(date string) string
	StartResearchGuidance string
}

// DefaultPromptSet returns the fixed template text shipped with the agent.
// Callers may override any field to customize prompts without touching the
// mode/stage machine's transition logic.
func DefaultPromptSet() PromptSet {
	return PromptSet{
		ChatTemplate: func(date string) string {
			return fmt.Sprintf("You are a helpful research assistant answering directly in Chat Mode. Today is %s. Use web_search when the answer depends on current information; cite sources as [n].", date)
		},
		AgentHILTemplate: func(date string) string {
			return fmt.Sprintf("You are a deep-research agent. Today is %s. Ask 2-4 clarifying questions before starting, then call start_research once scope is clear.", date)
		},
		StartResearchGuidance: "Research stage begins now. You must call a tool on every turn; use web_search, execute_python, file_read/write/list, research_assistant, and compact_context as needed; call stop_answer only when ready to produce the final artifact.",
	}
}

// StageMachine owns the mode/stage state for one session and the transition
// rules of spec §4.7.
type StageMachine struct {
	mode     models.Mode
	stage    models.Stage
	lastMode models.Mode
	prompts  PromptSet
	now      func() time.Time
}

// NewStageMachine returns a machine starting in Chat mode with no prior
// mode recorded (so the first SwitchMode always triggers a prompt replace).
func NewStageMachine(prompts PromptSet) *StageMachine {
	return &StageMachine{mode: models.ModeChat, stage: "", lastMode: "", prompts: prompts, now: time.Now}
}

// Mode returns the current mode.
func (s *StageMachine) Mode() models.Mode { return s.mode }

// Stage returns the current stage; meaningless outside Agent mode.
func (s *StageMachine) Stage() models.Stage { return s.stage }

// SwitchMode applies the caller-driven mode switch for a turn. If mode
// differs from the last mode used on this session, the log's system
// message is replaced in place and, when switching into Agent mode, the
// stage resets to HIL. The machine holds no tools; `switched` only reports
// whether a switch happened.
func (s *StageMachine) SwitchMode(log *messagelog.Log, mode models.Mode) (switched bool, err error) {
	if mode == s.lastMode {
		s.mode = mode
		return false, nil
	}
	date := s.now().UTC().Format("2006-01-02")
	var prompt string
	switch mode {
	case models.ModeChat:
		prompt = s.prompts.ChatTemplate(date)
	case models.ModeAgent:
		prompt = s.prompts.AgentHILTemplate(date)
	default:
		return false, fmt.Errorf("agent: unknown mode %q", mode)
	}
	if err := log.ReplaceSystemPrompt(prompt); err != nil {
		return false, fmt.Errorf("agent: replace system prompt: %w", err)
	}
	s.mode = mode
	s.lastMode = mode
	if mode == models.ModeAgent {
		s.stage = models.StageHIL
	} else {
		s.stage = ""
	}
	return true, nil
}

// EnterResearch performs the model-driven stage transition triggered by
// start_research. It is a no-op (returns false) if not currently in
// Agent/HIL.
func (s *StageMachine) EnterResearch() bool {
	if s.mode != models.ModeAgent || s.stage != models.StageHIL {
		return false
	}
	s.stage = models.StageResearch
	return true
}

// ResetToHIL performs the mandatory, structural auto-reset from
// Agent/Research back to Agent/HIL on the terminal response of a Research
// turn (spec §4.7 "Auto-reset"; §9 deviation from the original's
// text-sniffing heuristic).
func (s *StageMachine) ResetToHIL() {
	if s.mode == models.ModeAgent {
		s.stage = models.StageHIL
	}
}

// AvailableTools returns the tool names installable for the current
// mode/stage, per the table in spec §4.7. Callers intersect this with their
// actual tool implementations (e.g. omitting execute_python when no sandbox
// key is configured).
func (s *StageMachine) AvailableTools() []string {
	switch {
	case s.mode == models.ModeChat:
		return []string{"web_search", "execute_python", "file_read"}
	case s.mode == models.ModeAgent && s.stage == models.StageHIL:
		return []string{"web_search", "start_research"}
	case s.mode == models.ModeAgent && s.stage == models.StageResearch:
		return []string{
			"web_search", "execute_python", "file_read", "file_write", "file_list", "file_edit",
			"research_assistant", "compact_context", "stop_answer",
		}
	default:
		return nil
	}
}

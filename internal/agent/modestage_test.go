package agent

import (
	"testing"

	"github.com/haasonsaas/researchagent/internal/messagelog"
	"github.com/haasonsaas/researchagent/pkg/models"
)

func TestStageMachine_SwitchMode_ReplacesSystemPromptInPlace(t *testing.T) {
	log := messagelog.New()
	log.AppendUser("hi") // no system message yet

	sm := NewStageMachine(DefaultPromptSet())
	switched, err := sm.SwitchMode(log, models.ModeChat)
	if err != nil {
		t.Fatalf("SwitchMode: %v", err)
	}
	if !switched {
		t.Error("expected first switch to report switched=true")
	}
	msgs := log.List()
	if msgs[0].Role != models.RoleSystem {
		t.Fatalf("position 0 role = %s, want system", msgs[0].Role)
	}

	// Same mode again: no-op, no duplicate system message.
	switched, err = sm.SwitchMode(log, models.ModeChat)
	if err != nil {
		t.Fatalf("SwitchMode: %v", err)
	}
	if switched {
		t.Error("same-mode switch should report switched=false")
	}
}

func TestStageMachine_SwitchMode_IntoAgentResetsStage(t *testing.T) {
	log := messagelog.New()
	sm := NewStageMachine(DefaultPromptSet())
	sm.SwitchMode(log, models.ModeChat)
	sm.EnterResearchForTest()

	if _, err := sm.SwitchMode(log, models.ModeAgent); err != nil {
		t.Fatalf("SwitchMode: %v", err)
	}
	if sm.Stage() != models.StageHIL {
		t.Errorf("Stage() = %s, want hil after switching into Agent mode", sm.Stage())
	}
}

func TestStageMachine_EnterResearch_OnlyFromAgentHIL(t *testing.T) {
	log := messagelog.New()
	sm := NewStageMachine(DefaultPromptSet())

	if sm.EnterResearch() {
		t.Error("should not enter research from chat mode")
	}

	sm.SwitchMode(log, models.ModeAgent)
	if !sm.EnterResearch() {
		t.Error("should enter research from agent/hil")
	}
	if sm.Stage() != models.StageResearch {
		t.Errorf("Stage() = %s, want research", sm.Stage())
	}
	if sm.EnterResearch() {
		t.Error("should not re-enter research once already in research")
	}
}

func TestStageMachine_ResetToHIL(t *testing.T) {
	log := messagelog.New()
	sm := NewStageMachine(DefaultPromptSet())
	sm.SwitchMode(log, models.ModeAgent)
	sm.EnterResearch()
	sm.ResetToHIL()
	if sm.Stage() != models.StageHIL {
		t.Errorf("Stage() = %s, want hil", sm.Stage())
	}
}

func TestStageMachine_AvailableTools(t *testing.T) {
	log := messagelog.New()
	sm := NewStageMachine(DefaultPromptSet())

	sm.SwitchMode(log, models.ModeChat)
	if got := sm.AvailableTools(); len(got) != 3 {
		t.Errorf("chat tools = %v", got)
	}

	sm.SwitchMode(log, models.ModeAgent)
	if got := sm.AvailableTools(); len(got) != 2 {
		t.Errorf("agent/hil tools = %v", got)
	}

	sm.EnterResearch()
	if got := sm.AvailableTools(); len(got) < 7 {
		t.Errorf("agent/research tools = %v", got)
	}
}

// EnterResearchForTest exercises the Agent/HIL->Research transition
// regardless of current mode, to set up the Agent-mode-reset test above.
func (s *StageMachine) EnterResearchForTest() {
	s.mode = models.ModeAgent
	s.stage = models.StageHIL
	s.EnterResearch()
}

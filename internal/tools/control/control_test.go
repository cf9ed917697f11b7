package control

import (
	"context"
	"testing"
)

func TestStopAnswerEnvelope(t *testing.T) {
	result, err := StopAnswerTool{}.Execute(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	env := result.Structured.(map[string]any)
	if env["signal"] != SignalStopAndAnswer {
		t.Errorf("signal = %v", env["signal"])
	}
	if env["prompt"] == "" {
		t.Errorf("missing injection prompt")
	}
}

func TestStartResearchEnvelope(t *testing.T) {
	result, err := StartResearchTool{}.Execute(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	env := result.Structured.(map[string]any)
	if env["signal"] != SignalSwitchToResearch {
		t.Errorf("signal = %v", env["signal"])
	}
	if g, _ := env["guidance"].(string); g == "" {
		t.Errorf("missing guidance prompt")
	}
}

func TestControlToolsTakeNoArguments(t *testing.T) {
	for _, params := range []map[string]any{
		StopAnswerTool{}.Parameters(),
		StartResearchTool{}.Parameters(),
	} {
		props, ok := params["properties"].(map[string]any)
		if !ok || len(props) != 0 {
			t.Errorf("control tools must declare no parameters: %+v", params)
		}
	}
}

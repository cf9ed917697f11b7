package config

import "testing"

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c.LLM.ContextLimitTokens != 400_000 {
		t.Errorf("ContextLimitTokens = %d, want 400000", c.LLM.ContextLimitTokens)
	}
	if c.LLM.AutoCompactThresholdTokens != 280_000 {
		t.Errorf("AutoCompactThresholdTokens = %d, want 280000", c.LLM.AutoCompactThresholdTokens)
	}
	if c.Session.MaxIterations != 200 {
		t.Errorf("MaxIterations = %d, want 200", c.Session.MaxIterations)
	}
}

func TestValidate_ProductionRequiresKeys(t *testing.T) {
	c := Default()
	c.Environment = "production"
	if err := c.Validate(); err == nil {
		t.Error("expected error without provider/search keys")
	}
	c.LLM.Anthropic.APIKey = "sk-ant-x"
	c.Tools.WebSearch.APIKey = "exa-x"
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected error with keys set: %v", err)
	}
}

func TestValidate_RejectsUnknownEnvironment(t *testing.T) {
	c := Default()
	c.Environment = "bogus"
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestSandboxEnabled(t *testing.T) {
	c := Default()
	if c.SandboxEnabled() {
		t.Error("sandbox should be disabled with no key configured")
	}
	c.Tools.Sandbox.APIKey = "e2b-x"
	if !c.SandboxEnabled() {
		t.Error("sandbox should be enabled once an api key is set")
	}
}

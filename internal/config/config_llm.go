package config

// LLMConfig groups the model-vendor credentials and the context-budget
// parameters the React loop and compaction sub-agent depend on.
type LLMConfig struct {
	DefaultModel string `yaml:"default_model"`

	Anthropic ProviderCredentials `yaml:"anthropic"`
	OpenAI    ProviderCredentials `yaml:"openai"`

	// ContextLimitTokens is the compile-time context ceiling (spec §6),
	// overridable here for tests.
	ContextLimitTokens int `yaml:"context_limit_tokens"`
	// AutoCompactThresholdTokens forces compaction once the last observed
	// prompt-token count exceeds this value (spec §4.6).
	AutoCompactThresholdTokens int `yaml:"auto_compact_threshold_tokens"`
}

// ProviderCredentials is the shared shape for a model vendor's credentials.
type ProviderCredentials struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// DefaultLLMConfig returns spec §6's defaults: 400k ceiling, 280k
// auto-compact threshold.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultModel:               "claude-sonnet-4-20250514",
		ContextLimitTokens:         400_000,
		AutoCompactThresholdTokens: 280_000,
	}
}

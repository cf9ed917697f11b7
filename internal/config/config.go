// Package config assembles the typed Config struct from environment
// variables and an optional YAML file, following the teacher's
// split-by-concern layout (config_llm.go, config_session.go, config_tools.go).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the research agent process.
type Config struct {
	Environment string `yaml:"environment"` // development|staging|production
	LogLevel    string `yaml:"log_level"`

	DataBaseDir string `yaml:"data_base_dir"`

	LLM     LLMConfig     `yaml:"llm"`
	Session SessionConfig `yaml:"session"`
	Tools   ToolsConfig   `yaml:"tools"`
	MCP     MCPConfig     `yaml:"mcp"`
}

// Load builds a Config from the defaults, a YAML file when path is
// non-empty, and environment variables, in that order: a set environment
// variable overrides the file's value for the same setting.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns baseline configuration before env/file overlays.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		DataBaseDir: "./data",
		LLM:         DefaultLLMConfig(),
		Session:     DefaultSessionConfig(),
		Tools:       DefaultToolsConfig(),
		MCP:         MCPConfig{Servers: map[string]MCPServerConfig{}},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATA_BASE_DIR"); v != "" {
		c.DataBaseDir = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.LLM.OpenAI.APIKey = v
		if c.LLM.OpenAI.BaseURL == "" {
			c.LLM.OpenAI.BaseURL = "https://openrouter.ai/api/v1"
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.Anthropic.APIKey = v
	}
	if v := os.Getenv("EXA_API_KEY"); v != "" {
		c.Tools.WebSearch.APIKey = v
	}
	if v := os.Getenv("E2B_API_KEY"); v != "" {
		c.Tools.Sandbox.APIKey = v
	}
}

// Validate enforces spec §6: production requires the two required keys.
func (c *Config) Validate() error {
	switch c.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("config: invalid environment %q", c.Environment)
	}
	if c.Environment == "production" {
		if c.LLM.OpenAI.APIKey == "" && c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("config: production requires a model provider API key")
		}
		if c.Tools.WebSearch.APIKey == "" {
			return fmt.Errorf("config: production requires EXA_API_KEY")
		}
	}
	return nil
}

// SandboxEnabled reports whether any sandbox backend setting is present
// (APIKey or FirecrackerKernelImage). The serve command builds a runner
// only from FirecrackerKernelImage, so an APIKey alone does not register
// execute_python.
func (c *Config) SandboxEnabled() bool {
	return c.Tools.Sandbox.APIKey != "" || c.Tools.Sandbox.FirecrackerKernelImage != ""
}

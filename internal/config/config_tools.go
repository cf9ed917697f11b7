package config

import "time"

// ToolsConfig groups per-tool configuration (spec §4.4, §6).
type ToolsConfig struct {
	WebSearch WebSearchConfig `yaml:"web_search"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
}

// WebSearchConfig configures the web_search tool's vendor client.
type WebSearchConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	DefaultResults int    `yaml:"default_results"`
}

// SandboxConfig configures the execute_python tool's backend. The only
// wired backend is the Firecracker microVM selected by
// FirecrackerKernelImage; execute_python is registered only when it is set.
// APIKey (E2B_API_KEY) is loaded and reported by SandboxEnabled, but no
// hosted-sandbox runner uses it.
type SandboxConfig struct {
	APIKey                 string        `yaml:"api_key"`
	FirecrackerKernelImage string        `yaml:"firecracker_kernel_image"`
	FirecrackerRootfs      string        `yaml:"firecracker_rootfs"`
	Timeout                time.Duration `yaml:"timeout"`
}

// DefaultToolsConfig returns the defaults used when no overrides are set.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		WebSearch: WebSearchConfig{DefaultResults: 5},
		Sandbox:   SandboxConfig{Timeout: 10 * time.Minute},
	}
}

// MCPServerConfig is one entry in the external-tool bridge's static mapping
// (spec §4.5): a spawn command, its args, and optional environment.
type MCPServerConfig struct {
	Transport string            `yaml:"transport"` // "stdio" or "grpc"
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	Address   string            `yaml:"address"` // grpc transport only
}

// MCPConfig is the external-tool bridge's server map.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `yaml:"servers"`
}

package config

import "time"

// SessionConfig groups session/loop parameters (spec §6).
type SessionConfig struct {
	MaxIterations int `yaml:"max_iterations"`

	// KeepRecentUserMessages is the compaction keep-recent count K
	// (spec §4.6, default 10).
	KeepRecentUserMessages int `yaml:"keep_recent_user_messages"`

	// IdleTimeout controls the background reaper's session expiry window.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DefaultSessionConfig returns spec §6's default of 200 max iterations.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxIterations:          200,
		KeepRecentUserMessages: 10,
		IdleTimeout:            24 * time.Hour,
	}
}

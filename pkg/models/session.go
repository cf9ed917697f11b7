package models

import "time"

// SessionSummary is the lightweight projection of a session used for
// history sidebars; it is recoverable without instantiating the session's
// engine (spec §4.9 "Persisted-session rehydration on startup").
type SessionSummary struct {
	SessionID     string    `json:"session_id"`
	DisplayName   string    `json:"display_name,omitempty"`
	FirstMessage  string    `json:"first_message,omitempty"`
	ResponseCount int       `json:"response_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ChatHistory is the persisted `chat_history.json` document for a session.
type ChatHistory struct {
	SessionID string         `json:"session_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Responses []ChatResponse `json:"responses"`
}

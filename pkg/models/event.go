package models

// EventType is the discriminator for the ordered event stream alphabet
// defined in spec §4.10.
type EventType string

const (
	EventSessionCreated EventType = "session_created"
	EventStageSwitch    EventType = "stage_switch"
	EventThinkingStep   EventType = "thinking_step"
	EventChunk          EventType = "chunk"
	EventCancelled      EventType = "cancelled"
	EventError          EventType = "error"
	EventComplete       EventType = "complete"
	EventDone           EventType = "done"
)

// Event is one record of the turn's event stream. At most one payload field
// is populated for any given Type (done carries none); the transport adapter
// marshals this as
// `data: {...}\n\n`.
type Event struct {
	Type EventType `json:"type"`

	SessionCreated *SessionCreatedPayload `json:"session_created,omitempty"`
	StageSwitch    *StageSwitchPayload    `json:"stage_switch,omitempty"`
	ThinkingStep   *ThinkingStep          `json:"thinking_step,omitempty"`
	Chunk          string                 `json:"chunk,omitempty"`
	Cancelled      *CancelledPayload      `json:"cancelled,omitempty"`
	Error          *ErrorPayload          `json:"error,omitempty"`
	Complete       *ChatResponse          `json:"complete,omitempty"`
}

// SessionCreatedPayload accompanies EventSessionCreated.
type SessionCreatedPayload struct {
	SessionID string `json:"session_id"`
}

// StageSwitchPayload accompanies EventStageSwitch.
type StageSwitchPayload struct {
	Stage Stage `json:"stage"`
}

// CancelledPayload accompanies EventCancelled.
type CancelledPayload struct {
	Message        string `json:"message"`
	StepsCompleted int    `json:"steps_completed"`
	Stage          Stage  `json:"stage,omitempty"`
}

// ErrorPayload accompanies EventError.
type ErrorPayload struct {
	Message string `json:"message"`
}

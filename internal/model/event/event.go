package event

import "time"

// Envelope types pushed to live connections.
const (
	TypeSessionJoined = "session_joined"
	TypeUserMessage   = "user_message"
	TypeAgentResponse = "agent_response"
	TypeModeSwitched  = "mode_switched"
	TypeError         = "error"
)

// Envelope is the wire shape of every outbound WebSocket event.
// Fields are top-level with omitempty so each event type carries only
// what it needs.
type Envelope struct {
	Type            string    `json:"type"`
	SessionID       string    `json:"sessionId,omitempty"`
	ConnectionID    string    `json:"connectionId,omitempty"`
	Content         string    `json:"content,omitempty"`
	Mode            string    `json:"mode,omitempty"`
	Message         string    `json:"message,omitempty"`
	ToolUsed        any       `json:"toolUsed,omitempty"`
	ExecutionResult any       `json:"executionResult,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// New stamps an envelope of the given type with the current UTC time.
func New(eventType string) Envelope {
	return Envelope{Type: eventType, Timestamp: time.Now().UTC()}
}

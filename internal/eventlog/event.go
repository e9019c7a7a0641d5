// Package eventlog publishes the async audit trail — tool invocations,
// intent decisions, and save events — to Kafka, with a ClickHouse sink
// available for direct inserts when no consumer pipeline is running.
package eventlog

import "time"

// Event is one audit record emitted during a conversation turn.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

const (
	EventToolInvocation = "tool_invocation"
	EventIntentDecision = "intent_decision"
	EventSave           = "save"
)

// Package sessionstore keeps the per-session record the workflow engine
// threads turn history, running summary, and intent trail through. The
// in-memory backend is authoritative for single-process deployments; the
// Redis backend lets sessions survive a process restart or be shared
// across replicas.
package sessionstore

import (
	"context"
	"time"

	"github.com/northstar-market/concierge/internal/state"
)

// Record is the full per-session value the store keys by session id.
type Record struct {
	SessionID           string              `json:"session_id"`
	UserID              string              `json:"user_id,omitempty"`
	History             []state.Turn        `json:"history"`
	ConversationSummary string              `json:"conversation_summary"`
	LastIntent          state.Intent        `json:"last_intent,omitempty"`
	IntentHistory       []state.IntentRecord `json:"intent_history"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// Fields is the partial-update payload Update merges into an existing
// Record (or a freshly zeroed one, if the session does not yet exist).
// Nil fields are left untouched.
type Fields struct {
	UserID               *string
	ConversationSummary  *string
	LastIntent           *state.Intent
	IntentHistory        []state.IntentRecord
	History              []state.Turn
}

// MaxHistoryTurns bounds the per-session turn history; AppendTurn trims to
// the most recent MaxHistoryTurns entries after each push.
const MaxHistoryTurns = 20

// Store is a process-wide keyed session record store. A durable backend
// may fail with an *state.IOError on I/O; callers treat a failed Get as a
// cache miss (nil, nil) and a failed Update/AppendTurn as a no-op, per the
// failure semantics every backend here honors.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Record, error)
	Update(ctx context.Context, sessionID string, fields Fields) error
	AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error
	Clear(ctx context.Context, sessionID string) error
}

func applyFields(rec *Record, fields Fields) {
	if fields.UserID != nil {
		rec.UserID = *fields.UserID
	}
	if fields.ConversationSummary != nil {
		rec.ConversationSummary = *fields.ConversationSummary
	}
	if fields.LastIntent != nil {
		rec.LastIntent = *fields.LastIntent
	}
	if fields.IntentHistory != nil {
		rec.IntentHistory = fields.IntentHistory
	}
	if fields.History != nil {
		rec.History = trimHistory(fields.History)
	}
}

func trimHistory(history []state.Turn) []state.Turn {
	if len(history) <= MaxHistoryTurns {
		return history
	}
	return history[len(history)-MaxHistoryTurns:]
}

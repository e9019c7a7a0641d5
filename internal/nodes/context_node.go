package nodes

import (
	"context"
	"time"

	"github.com/northstar-market/concierge/internal/sessionstore"
	"github.com/northstar-market/concierge/internal/state"
)

// ContextNode loads conversation_history, intent_history, and
// conversation_summary from the session store into state and stamps the
// current timestamp.
type ContextNode struct {
	Store sessionstore.Store
}

func (n *ContextNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	s.Timestamp = time.Now().UTC()

	rec, err := n.Store.Get(ctx, s.SessionID)
	if err != nil || rec == nil {
		return s, nil
	}
	s.ConversationHistory = rec.History
	s.ConversationSummary = rec.ConversationSummary
	s.IntentHistory = rec.IntentHistory
	if rec.UserID != "" {
		s.UserID = rec.UserID
	}
	return s, nil
}

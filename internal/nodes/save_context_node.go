package nodes

import (
	"context"

	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/sessionstore"
	"github.com/northstar-market/concierge/internal/state"
	"github.com/northstar-market/concierge/internal/summarizer"
)

// SaveContextNode persists the turn just produced and, if a summarizer is
// configured, conditionally compresses the session's history.
type SaveContextNode struct {
	Store      sessionstore.Store
	Summarizer *summarizer.Summarizer
}

func (n *SaveContextNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	log := observability.LoggerWithTrace(ctx)

	if err := n.Store.AppendTurn(ctx, s.SessionID, s.UserMessage, s.Response); err != nil {
		log.Warn().Err(err).Msg("append_turn_failed")
	}

	intent := s.Intent
	if err := n.Store.Update(ctx, s.SessionID, sessionstore.Fields{
		LastIntent:    &intent,
		IntentHistory: s.IntentHistory,
	}); err != nil {
		log.Warn().Err(err).Msg("update_session_fields_failed")
	}

	if n.Summarizer == nil {
		return s, nil
	}

	rec, err := n.Store.Get(ctx, s.SessionID)
	if err != nil || rec == nil {
		return s, nil
	}

	if !n.Summarizer.ShouldSummarize(rec.History) {
		return s, nil
	}

	result, err := n.Summarizer.Summarize(ctx, rec.History, rec.ConversationSummary)
	if err != nil {
		log.Warn().Err(err).Msg("summarize_failed_falling_back_to_truncate")
		result = n.Summarizer.FallbackTruncate(rec.History)
		if updateErr := n.replaceHistory(ctx, s.SessionID, result.RemainingHistory); updateErr != nil {
			log.Warn().Err(updateErr).Msg("fallback_truncate_store_update_failed")
		}
		return s, nil
	}

	summary := result.Summary
	if err := n.replaceHistoryAndSummary(ctx, s.SessionID, result.RemainingHistory, summary); err != nil {
		log.Warn().Err(err).Msg("summarize_store_update_failed")
	}
	return s, nil
}

func (n *SaveContextNode) replaceHistory(ctx context.Context, sessionID string, history []state.Turn) error {
	return n.Store.Update(ctx, sessionID, sessionstore.Fields{History: history})
}

func (n *SaveContextNode) replaceHistoryAndSummary(ctx context.Context, sessionID string, history []state.Turn, summary string) error {
	return n.Store.Update(ctx, sessionID, sessionstore.Fields{History: history, ConversationSummary: &summary})
}

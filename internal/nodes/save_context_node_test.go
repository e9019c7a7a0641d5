package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/sessionstore"
	"github.com/northstar-market/concierge/internal/state"
	"github.com/northstar-market/concierge/internal/summarizer"
)

var errOops = errors.New("boom")

func TestSaveContextNode_AppendsTurnAndIntent(t *testing.T) {
	store := sessionstore.NewMemoryStore(0, 0)
	n := &SaveContextNode{Store: store}
	s := state.ConversationState{SessionID: "s1", UserMessage: "hi", Response: "hello", Intent: state.IntentQA}

	if _, err := n.Execute(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.Get(context.Background(), "s1")
	if err != nil || rec == nil {
		t.Fatalf("expected record to exist, err=%v", err)
	}
	if len(rec.History) != 1 || rec.History[0].User != "hi" {
		t.Fatalf("expected appended turn, got %+v", rec.History)
	}
	if rec.LastIntent != state.IntentQA {
		t.Fatalf("expected last_intent updated, got %q", rec.LastIntent)
	}
}

func TestSaveContextNode_TriggersSummarizationAfterThreshold(t *testing.T) {
	store := sessionstore.NewMemoryStore(0, 0)
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		if err := store.AppendTurn(ctx, "s2", "u", "a"); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}

	sm := &summarizer.Summarizer{
		Provider: &staticProvider{resp: llm.Message{Content: "merged summary"}},
		Config:   summarizer.Config{TriggerThreshold: 10},
	}
	n := &SaveContextNode{Store: store, Summarizer: sm}
	s := state.ConversationState{SessionID: "s2", UserMessage: "one more", Response: "ack"}

	if _, err := n.Execute(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.Get(ctx, "s2")
	if err != nil || rec == nil {
		t.Fatalf("expected record, err=%v", err)
	}
	if rec.ConversationSummary != "merged summary" {
		t.Fatalf("expected summary updated, got %q", rec.ConversationSummary)
	}
	if len(rec.History) > 10 {
		t.Fatalf("expected history trimmed to threshold, got %d", len(rec.History))
	}
}

func TestSaveContextNode_SummarizerFailureFallsBackToTruncate(t *testing.T) {
	store := sessionstore.NewMemoryStore(0, 0)
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		if err := store.AppendTurn(ctx, "s3", "u", "a"); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}

	sm := &summarizer.Summarizer{
		Provider: &staticProvider{err: errOops},
		Config:   summarizer.Config{TriggerThreshold: 10},
	}
	n := &SaveContextNode{Store: store, Summarizer: sm}
	s := state.ConversationState{SessionID: "s3", UserMessage: "one more", Response: "ack"}

	if _, err := n.Execute(ctx, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.Get(ctx, "s3")
	if err != nil || rec == nil {
		t.Fatalf("expected record, err=%v", err)
	}
	if len(rec.History) > 10 {
		t.Fatalf("expected truncated history, got %d", len(rec.History))
	}
	if rec.ConversationSummary != "" {
		t.Fatalf("expected summary untouched on fallback, got %q", rec.ConversationSummary)
	}
}

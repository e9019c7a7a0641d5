package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/northstar-market/concierge/internal/state"
)

func TestMemoryStore_GetMissingReturnsNilNil(t *testing.T) {
	s := NewMemoryStore(0, 0)
	rec, err := s.Get(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record, got %+v", rec)
	}
}

func TestMemoryStore_UpdateMergesUnspecifiedFieldsPreserved(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()

	userID := "u1"
	if err := s.Update(ctx, "sess1", Fields{UserID: &userID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary := "customer asked about order status"
	if err := s.Update(ctx, "sess1", Fields{ConversationSummary: &summary}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := s.Get(ctx, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.UserID != "u1" {
		t.Fatalf("expected user_id preserved, got %q", rec.UserID)
	}
	if rec.ConversationSummary != summary {
		t.Fatalf("expected summary set, got %q", rec.ConversationSummary)
	}
}

func TestMemoryStore_AppendTurnTrimsToMaxHistory(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()
	for i := 0; i < MaxHistoryTurns+5; i++ {
		if err := s.AppendTurn(ctx, "sess1", "hi", "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	rec, err := s.Get(ctx, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.History) != MaxHistoryTurns {
		t.Fatalf("expected history trimmed to %d, got %d", MaxHistoryTurns, len(rec.History))
	}
}

func TestMemoryStore_ClearRemovesSession(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()
	_ = s.AppendTurn(ctx, "sess1", "hi", "hello")
	if err := s.Clear(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := s.Get(ctx, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected cleared session to be gone, got %+v", rec)
	}
}

func TestMemoryStore_UpdateRejectsEmptySessionID(t *testing.T) {
	s := NewMemoryStore(0, 0)
	err := s.Update(context.Background(), "", Fields{})
	if err == nil {
		t.Fatal("expected validation error for empty session_id")
	}
	var verr *state.ValidationError
	if _, ok := err.(*state.ValidationError); !ok {
		t.Fatalf("expected *state.ValidationError, got %T (%v)", err, verr)
	}
}

func TestMemoryStore_GetReturnsIndependentCopy(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()
	_ = s.AppendTurn(ctx, "sess1", "first", "reply")

	rec, err := s.Get(ctx, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec.History[0].User = "mutated"

	rec2, err := s.Get(ctx, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec2.History[0].User != "first" {
		t.Fatalf("expected stored record unaffected by caller mutation, got %q", rec2.History[0].User)
	}
}

func TestMemoryStore_EvictsOldestHalfAtMaxSessions(t *testing.T) {
	s := NewMemoryStore(4, time.Hour)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		sid := "sess" + string(rune('a'+i))
		if err := s.AppendTurn(ctx, sid, "hi", "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// A fifth session arrives at the limit and evicts the oldest half.
	if err := s.AppendTurn(ctx, "sessnew", "hi", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := s.Get(ctx, "sessa")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected oldest session evicted once max sessions reached, still present: %+v", rec)
	}

	rec, err = s.Get(ctx, "sessnew")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil {
		t.Fatal("expected newest session to survive eviction")
	}
}

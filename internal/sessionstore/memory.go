package sessionstore

import (
	"context"
	"strings"
	"time"

	"github.com/northstar-market/concierge/internal/cache"
	"github.com/northstar-market/concierge/internal/state"
)

// memStore is a process-local Store; it never fails. Records are held in
// a cache.LRU so the process never grows without bound: once maxSessions
// is reached, the oldest half (by insertion order) is evicted, the same
// policy the intent cache uses.
type memStore struct {
	sessions *cache.LRU
}

// NewMemoryStore returns a Store backed by an in-process, size-bounded
// cache. maxSessions <= 0 falls back to cache.DefaultMaxSize; ttl <= 0
// falls back to cache.DefaultTTL.
func NewMemoryStore(maxSessions int, ttl time.Duration) Store {
	return &memStore{sessions: cache.New(cache.Config{MaxSize: maxSessions, TTL: ttl})}
}

func (s *memStore) get(sessionID string) (Record, bool) {
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return Record{}, false
	}
	return v.(Record), true
}

func (s *memStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	rec, ok := s.get(sessionID)
	if !ok {
		return nil, nil
	}
	out := rec
	out.History = append([]state.Turn(nil), rec.History...)
	out.IntentHistory = append([]state.IntentRecord(nil), rec.IntentHistory...)
	return &out, nil
}

func (s *memStore) Update(ctx context.Context, sessionID string, fields Fields) error {
	if strings.TrimSpace(sessionID) == "" {
		return &state.ValidationError{Msg: "session_id is required"}
	}
	rec, _ := s.get(sessionID)
	rec.SessionID = sessionID
	applyFields(&rec, fields)
	rec.UpdatedAt = time.Now().UTC()
	s.sessions.Set(sessionID, rec)
	return nil
}

func (s *memStore) AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error {
	if strings.TrimSpace(sessionID) == "" {
		return &state.ValidationError{Msg: "session_id is required"}
	}
	rec, _ := s.get(sessionID)
	rec.SessionID = sessionID
	rec.History = trimHistory(append(rec.History, state.Turn{
		User:      userText,
		Assistant: assistantText,
		Timestamp: time.Now().UTC(),
	}))
	rec.UpdatedAt = time.Now().UTC()
	s.sessions.Set(sessionID, rec)
	return nil
}

func (s *memStore) Clear(ctx context.Context, sessionID string) error {
	s.sessions.Delete(sessionID)
	return nil
}

package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/northstar-market/concierge/internal/observability"
	"github.com/northstar-market/concierge/internal/state"
)

// redisStore persists Records in Redis so sessions survive a process
// restart and can be shared across replicas. A failed round trip is logged
// and returned as a wrapped *state.IOError from Get, Update, AppendTurn and
// Clear; a missing key makes Get return (nil, nil). Callers treat a failed
// Get as a miss and a failed Update or AppendTurn as a no-op.
type redisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore builds a Store backed by addr/password/db. ttl<=0 disables
// expiry.
func NewRedisStore(addr, password string, db int, ttl time.Duration) Store {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &redisStore{client: client, ttl: ttl}
}

func (s *redisStore) key(sessionID string) string { return "concierge:session:" + sessionID }

func (s *redisStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	log := observability.LoggerWithTrace(ctx)
	val, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		log.Warn().Err(err).Str("session_id", sessionID).Msg("session_store_get_failed")
		return nil, &state.IOError{Op: "sessionstore.get", Err: err}
	}
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("session_store_decode_failed")
		return nil, &state.IOError{Op: "sessionstore.get", Err: err}
	}
	return &rec, nil
}

func (s *redisStore) save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &state.IOError{Op: "sessionstore.encode", Err: err}
	}
	if err := s.client.Set(ctx, s.key(rec.SessionID), data, s.ttl).Err(); err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Str("session_id", rec.SessionID).Msg("session_store_save_failed")
		return &state.IOError{Op: "sessionstore.save", Err: err}
	}
	return nil
}

func (s *redisStore) Update(ctx context.Context, sessionID string, fields Fields) error {
	existing, err := s.Get(ctx, sessionID)
	if err != nil {
		existing = nil
	}
	var rec Record
	if existing != nil {
		rec = *existing
	}
	rec.SessionID = sessionID
	applyFields(&rec, fields)
	rec.UpdatedAt = time.Now().UTC()
	return s.save(ctx, rec)
}

func (s *redisStore) AppendTurn(ctx context.Context, sessionID, userText, assistantText string) error {
	existing, err := s.Get(ctx, sessionID)
	if err != nil {
		existing = nil
	}
	var rec Record
	if existing != nil {
		rec = *existing
	}
	rec.SessionID = sessionID
	rec.History = trimHistory(append(rec.History, state.Turn{
		User:      userText,
		Assistant: assistantText,
		Timestamp: time.Now().UTC(),
	}))
	rec.UpdatedAt = time.Now().UTC()
	return s.save(ctx, rec)
}

func (s *redisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Str("session_id", sessionID).Msg("session_store_clear_failed")
		return &state.IOError{Op: "sessionstore.clear", Err: err}
	}
	return nil
}

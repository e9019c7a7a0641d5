package sessionstore

import "github.com/northstar-market/concierge/internal/config"

// Build returns the Store the configured session backend selects:
// "redis" for a shared/durable store, anything else (including the
// "memory" default) for the in-process map.
func Build(cfg config.SessionConfig) Store {
	if cfg.Backend == "redis" {
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
	}
	return NewMemoryStore(cfg.MaxSessions, cfg.TTL)
}

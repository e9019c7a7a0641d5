// Package cache provides a small generic LRU+TTL cache used by the intent
// classifier's short-circuit cache and by the session store's in-memory
// backend. Grounded on the token-count cache the teacher repo keeps next to
// its LLM client; generalized here to hold arbitrary values and to let
// callers pick the key (the intent node hashes with MD5 per the spec; other
// callers may use a plain string).
package cache

import (
	"sync"
	"time"
)

const (
	// DefaultMaxSize caps the cache at this many entries unless configured
	// otherwise; matches the MAX_CONCURRENT_SESSIONS-adjacent default the
	// spec calls out for the intent cache and session store (1000).
	DefaultMaxSize = 1000
	DefaultTTL     = 1 * time.Hour
)

// LRU is a threadsafe, size- and time-bounded cache of string key to any
// value. Eviction runs "oldest half" at capacity (per spec.md §5) rather
// than a strict single-entry LRU, since that is the documented behavior for
// the intent cache and session store.
type LRU struct {
	mu      sync.Mutex
	entries map[string]entry
	order   []string // insertion order, oldest first
	maxSize int
	ttl     time.Duration
	hits    int64
	misses  int64
}

type entry struct {
	value      any
	expiresAt  time.Time
	lastAccess time.Time
}

type Config struct {
	MaxSize int
	TTL     time.Duration
}

func New(cfg Config) *LRU {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &LRU{
		entries: make(map[string]entry, cfg.MaxSize),
		maxSize: cfg.MaxSize,
		ttl:     cfg.TTL,
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *LRU) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	e.lastAccess = time.Now()
	c.entries[key] = e
	c.hits++
	return e.value, true
}

// Set stores value under key, refreshing TTL. When at capacity, the oldest
// half of entries (by insertion order) is evicted first.
func (c *LRU) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.maxSize {
			c.evictOldestHalfLocked()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry{value: value, expiresAt: now.Add(c.ttl), lastAccess: now}
}

func (c *LRU) evictOldestHalfLocked() {
	n := len(c.order)
	if n == 0 {
		return
	}
	cut := n / 2
	if cut == 0 {
		cut = 1
	}
	for _, k := range c.order[:cut] {
		delete(c.entries, k)
	}
	remaining := c.order[cut:]
	// Keep only entries that still exist (defensive against duplicate keys).
	next := make([]string, 0, len(remaining))
	for _, k := range remaining {
		if _, ok := c.entries[k]; ok {
			next = append(next, k)
		}
	}
	c.order = next
}

// Delete removes key, if present.
func (c *LRU) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Size returns the number of live (not necessarily unexpired) entries.
func (c *LRU) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cumulative hit/miss counters.
func (c *LRU) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Clear removes every entry.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry, c.maxSize)
	c.order = nil
}

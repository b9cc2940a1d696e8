// Package cache provides the tool-result cache: an in-process TTL map
// keyed by tool name plus an argument digest. Expiry is lazy: entries
// are checked at lookup; there is no eviction sweep.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ResultCache caches tool results across concurrent investigations.
// Safe for concurrent use.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	flight  singleflight.Group

	hits    int64
	misses  int64
	expired int64
}

type cacheEntry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Expired int64 `json:"expired"`
	Entries int   `json:"entries"`
}

// New creates an empty result cache.
func New() *ResultCache {
	return &ResultCache{
		entries: make(map[string]*cacheEntry),
	}
}

// Key builds the cache key: tool:{name}:{sha256(canonical args)[:16]}.
// The digest is truncated for compactness; collisions at this key-space
// width are accepted as a documented limitation.
func Key(tool string, args json.RawMessage) string {
	return fmt.Sprintf("tool:%s:%s", tool, digest(args, 16))
}

// Digest returns the short argument digest recorded on tool-call records
// in place of raw arguments.
func Digest(args json.RawMessage) string {
	return digest(args, 12)
}

// digest hashes the canonical JSON form of args so that key-order
// differences in equivalent payloads collapse to one digest.
func digest(args json.RawMessage, length int) string {
	canonical := canonicalize(args)
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:length]
}

func canonicalize(args json.RawMessage) []byte {
	if len(args) == 0 {
		return []byte("{}")
	}
	var v interface{}
	if err := json.Unmarshal(args, &v); err != nil {
		return args
	}
	// json.Marshal sorts map keys, giving a stable byte form.
	out, err := json.Marshal(v)
	if err != nil {
		return args
	}
	return out
}

// Get returns the cached value for key, expiring stale entries in passing.
func (c *ResultCache) Get(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// refreshed the entry.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		atomic.AddInt64(&c.expired, 1)
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return entry.value, true
}

// Set stores a value under key with the given TTL.
func (c *ResultCache) Set(key string, value json.RawMessage, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

// Fetch returns the cached value for key or fills it via fill. Concurrent
// fills for the same key are deduplicated; fill errors are returned and
// never cached.
func (c *ResultCache) Fetch(key string, ttl time.Duration, fill func() (json.RawMessage, error)) (json.RawMessage, bool, error) {
	if value, ok := c.Get(key); ok {
		return value, true, nil
	}
	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		value, err := fill()
		if err != nil {
			return nil, err
		}
		c.Set(key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(json.RawMessage), false, nil
}

// Stats returns a snapshot of the hit/miss counters.
func (c *ResultCache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Expired: atomic.LoadInt64(&c.expired),
		Entries: entries,
	}
}

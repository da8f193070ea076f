// Package cache holds prior gateway responses keyed by request type and a
// hash of the normalized payload.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

// DefaultTTL applies to request types without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// Key derives the cache key for payload. Payloads that differ only in field
// order produce the same key: typed payloads marshal in struct order and maps
// marshal with sorted keys.
func Key(rt domain.RequestType, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return string(rt) + ":" + hex.EncodeToString(sum[:]), nil
}

// Entry is a cached response and the time it was stored.
type Entry struct {
	Type     domain.RequestType
	StoredAt time.Time
	Response *domain.Response
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	defaultTTL time.Duration
	ttls       map[domain.RequestType]time.Duration
	maxEntries int
	now        func() time.Time

	hits   int64
	misses int64
}

// New creates a cache. ttls overrides defaultTTL per request type; maxEntries
// of zero means unbounded.
func New(defaultTTL time.Duration, ttls map[domain.RequestType]time.Duration, maxEntries int) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	t := make(map[domain.RequestType]time.Duration, len(ttls))
	for k, v := range ttls {
		t[k] = v
	}
	return &Cache{
		entries:    make(map[string]Entry),
		defaultTTL: defaultTTL,
		ttls:       t,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// TTL returns the lifetime of entries of type rt.
func (c *Cache) TTL(rt domain.RequestType) time.Duration {
	if d, ok := c.ttls[rt]; ok && d > 0 {
		return d
	}
	return c.defaultTTL
}

// Get returns a copy of the live entry for key. Expired entries count as a
// miss and are dropped.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return Entry{}, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		c.misses++
		return Entry{}, false
	}

	c.hits++
	e.Response = e.Response.Clone()
	return e, true
}

// Put stores a copy of resp, replacing any previous entry for key.
func (c *Cache) Put(key string, rt domain.RequestType, resp *domain.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = Entry{
		Type:     rt,
		StoredAt: c.now(),
		Response: resp.Clone(),
	}
}

// Sweep removes expired entries and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache) expired(e Entry) bool {
	return c.now().Sub(e.StoredAt) >= c.TTL(e.Type)
}

func (c *Cache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.entries {
		if oldestKey == "" || e.StoredAt.Before(oldest) {
			oldestKey, oldest = k, e.StoredAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

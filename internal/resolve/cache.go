package resolve

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"satsangstream/resolverservice/internal/metrics"
)

const (
	defaultCacheTTL      = 60 * time.Minute
	defaultSweepInterval = 10 * time.Minute
)

// CacheStats are cumulative since construction or the last Clear.
type CacheStats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hitRate"`
}

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// Cache is a provider-agnostic TTL key/value store keyed by (operation,
// params). Expired entries are evicted lazily on read; StartSweeper adds an
// optional periodic sweep to bound memory. A single mutex guards the map —
// write rates here are conversational, not hot-path.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	hits    uint64
	misses  uint64
	nowFn   func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		nowFn:   time.Now,
	}
}

// CacheKey derives a stable key from the operation and its parameters.
// Params are serialized in sorted key order so that logically identical
// requests hash identically regardless of construction order.
func CacheKey(operation string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(operation)
	for _, key := range keys {
		sb.WriteByte('|')
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(params[key])
	}
	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Get(operation string, params map[string]string) (any, bool) {
	key := CacheKey(operation, params)
	now := c.nowFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if now.Sub(entry.storedAt) >= c.ttl {
		delete(c.entries, key)
		c.misses++
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	c.hits++
	metrics.CacheHitsTotal.Inc()
	return entry.value, true
}

// Set overwrites any existing entry for the key and resets its timestamp.
func (c *Cache) Set(operation string, params map[string]string, value any) {
	key := CacheKey(operation, params)
	now := c.nowFn()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, storedAt: now}
}

// Invalidate removes the entry regardless of its age.
func (c *Cache) Invalidate(operation string, params map[string]string) {
	key := CacheKey(operation, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// ClearExpired removes every entry whose age reached the TTL and reports how
// many were dropped. Safe to call concurrently with Get/Set.
func (c *Cache) ClearExpired() int {
	now := c.nowFn()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.storedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops all entries and resets the hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	c.hits = 0
	c.misses = 0
}

func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   len(c.entries),
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// StartSweeper runs ClearExpired on a ticker until the context is cancelled.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.ClearExpired()
			}
		}
	}()
}

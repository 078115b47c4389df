// Package promptcache is the process-wide keyed store for parsed agent
// prompts and registry views. Least-recently-used ordering comes from
// hashicorp's simplelru; byte accounting, TTL, and prefix invalidation are
// layered on top. Correctness relies on hash-based keying; the TTL is a
// safety net only.
package promptcache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/rs/zerolog"
)

// maxTrackedEntries bounds the LRU entry count. The effective bound is the
// byte cap; this exists only because simplelru requires a size.
const maxTrackedEntries = 1 << 16

// Key prefixes. A prompt is keyed by its content hash, a view by its root.
const (
	promptPrefix = "prompt:"
	viewPrefix   = "view:"
)

// PromptKey returns the cache key for a prompt content hash.
func PromptKey(contentHash string) string {
	return promptPrefix + contentHash
}

// ViewKey returns the cache key for a registry view root.
func ViewKey(root string) string {
	return viewPrefix + root
}

// ViewPrefix returns the prefix covering all registry views.
func ViewPrefix() string {
	return viewPrefix
}

type entry struct {
	value     any
	size      int64
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	Entries   int     `json:"entries"`
	Bytes     int64   `json:"bytes"`
	ByteCap   int64   `json:"byte_cap"`
	HitRatio  float64 `json:"hit_ratio"`
}

// Cache is a thread-safe LRU+TTL store with a byte-size cap.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.LRU[string, *entry]
	ttl       time.Duration
	byteCap   int64
	bytes     int64
	hits      uint64
	misses    uint64
	evictions uint64
	log       zerolog.Logger
}

// New creates a cache with the given byte cap and per-entry TTL.
// A ttl of zero disables expiry.
func New(byteCap int64, ttl time.Duration, log zerolog.Logger) *Cache {
	c := &Cache{
		ttl:     ttl,
		byteCap: byteCap,
		log:     log,
	}
	// onEvict runs under c.mu because every LRU mutation happens there.
	l, err := lru.NewLRU[string, *entry](maxTrackedEntries, func(_ string, e *entry) {
		c.bytes -= e.size
		c.evictions++
	})
	if err != nil {
		// simplelru only errors on a non-positive size.
		panic(err)
	}
	c.lru = l
	return c
}

// Get returns the cached value for key, or (nil, false) on miss. An expired
// entry counts as a miss and is removed.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.value, true
}

// Put stores value under key with the given size. Entries are evicted in LRU
// order until usage fits the byte cap. A value bigger than half the cap is
// treated as memory pressure and triggers emergency eviction first.
func (c *Cache) Put(key string, value any, sizeBytes int64) {
	if sizeBytes > c.byteCap {
		c.log.Warn().
			Str("key", key).
			Int64("size", sizeBytes).
			Int64("cap", c.byteCap).
			Msg("cache entry larger than byte cap, not stored")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if sizeBytes > c.byteCap/2 {
		c.evictLocked(c.byteCap / 2)
	}

	if old, ok := c.lru.Peek(key); ok {
		c.bytes -= old.size
	}

	var expires time.Time
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}
	c.lru.Add(key, &entry{value: value, size: sizeBytes, expiresAt: expires})
	c.bytes += sizeBytes

	c.evictLocked(c.byteCap)
}

// evictLocked removes oldest entries until usage is at or below target.
func (c *Cache) evictLocked(target int64) {
	for c.bytes > target {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			return
		}
	}
}

// Invalidate removes one key. Returns true if it was present.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// InvalidatePrefix removes every key with the given prefix and returns how
// many were removed.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var victims []string
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			victims = append(victims, key)
		}
	}
	for _, key := range victims {
		c.lru.Remove(key)
	}
	return len(victims)
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.bytes = 0
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   c.lru.Len(),
		Bytes:     c.bytes,
		ByteCap:   c.byteCap,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRatio = float64(c.hits) / float64(total)
	}
	return s
}

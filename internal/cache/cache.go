// Package cache memoizes query results by a content hash of the normalized
// geometry and match mode.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sells-group/zipmatch/internal/geometry"
	"github.com/sells-group/zipmatch/internal/match"
)

// DefaultMaxEntries bounds a cache created with a non-positive size.
const DefaultMaxEntries = 500

// Entry is one memoized result. Entries are never updated in place.
type Entry struct {
	// IDs is sorted and deduplicated.
	IDs []string
	// Candidates is the candidate count of the query that produced IDs.
	Candidates int
}

// Cache is a concurrent-safe result cache bounded by entry count. When full,
// the oldest inserted entry is evicted; reads do not change eviction order.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	order      []string // insertion order: front=oldest, back=newest
	maxEntries int
	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
}

// Stats contains cache performance statistics.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	HitRate    float64 `json:"hit_rate"`
}

// New creates a Cache holding at most maxEntries results.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
	}
}

// Key hashes mode together with the canonical encoding of g. Geometrically
// equal normalized inputs produce the same key.
func Key(g geometry.Geometry, mode match.Mode) string {
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write(g.Canonical())
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry stored under key. The returned IDs are a copy.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	entry.IDs = slices.Clone(entry.IDs)
	return entry, true
}

// Put stores entry under key, evicting the oldest entries while the cache
// holds more than its maximum. A key that is already present keeps its
// original entry and position.
func (c *Cache) Put(key string, entry Entry) {
	entry.IDs = slices.Clone(entry.IDs)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	c.entries[key] = entry
	c.order = append(c.order, key)

	for len(c.entries) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.evictions.Add(1)
	}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		Evictions:  c.evictions.Load(),
		HitRate:    hitRate,
	}
}

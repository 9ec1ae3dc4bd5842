package artifact

import (
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a concurrent-safe LRU cache for artifact payloads with TTL
// expiration and priority-tiered eviction. Expired entries are treated as
// misses and removed on read; a full cache evicts the lowest-priority,
// least-recently-used entry first.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*cacheEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
	evictions  atomic.Int64
}

type cacheEntry struct {
	data      []byte
	priority  Priority
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	HitRate    float64 `json:"hit_rate"`
}

// NewCache creates a cache with the given capacity and TTL. A zero or
// negative TTL disables expiry.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]*cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// TTL returns the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get retrieves a cached payload. A stale entry counts as a miss and is
// evicted in place.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, false
	}

	// Move to back (most recently used).
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.data, true
}

// Set stores a payload, evicting entries if the cache is at capacity.
// Priority picks who gets evicted first; it never extends an entry's TTL.
func (c *Cache) Set(key string, data []byte, priority Priority) {
	if priority < PriorityLow {
		priority = PriorityLow
	} else if priority > PriorityHigh {
		priority = PriorityHigh
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// If key already exists, update in place and move to back.
	if _, ok := c.entries[key]; ok {
		c.entries[key] = &cacheEntry{data: data, priority: priority, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		c.evictOne()
	}

	c.entries[key] = &cacheEntry{data: data, priority: priority, createdAt: time.Now()}
	c.order = append(c.order, key)
}

// evictOne removes the least-recently-used entry of the lowest priority
// tier present. Caller holds the lock.
func (c *Cache) evictOne() {
	for pri := PriorityLow; pri <= PriorityHigh; pri++ {
		for _, key := range c.order {
			if c.entries[key].priority != pri {
				continue
			}
			delete(c.entries, key)
			c.removeFromOrder(key)
			c.evictions.Add(1)
			return
		}
	}
}

// Clear drops every entry. Hit/miss counters keep their lifetime totals.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.order = nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Hits:       hits,
		Misses:     misses,
		Evictions:  c.evictions.Load(),
		HitRate:    hitRate,
	}
}

// removeFromOrder removes a key from the LRU order slice.
func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

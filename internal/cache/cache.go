// SPDX-License-Identifier: MIT

// Package cache stores validation results with a TTL, in memory or in Redis.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/streamcheck/internal/domain/stream"
	"github.com/ManuGH/streamcheck/internal/metrics"
)

// Cache provides thread-safe result caching with expiration.
type Cache interface {
	// Get retrieves a result. The second value is false if missing or expired.
	Get(key string) (stream.Result, bool)
	// Set stores a result with the specified TTL.
	Set(key string, value stream.Result, ttl time.Duration)
	// Delete removes a result.
	Delete(key string)
	// Clear removes every result.
	Clear()
	// Stats returns cache statistics.
	Stats() CacheStats
}

// CacheStats holds cache performance metrics.
type CacheStats struct {
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Sets        int64 `json:"sets"`
	Evictions   int64 `json:"evictions"`
	CurrentSize int   `json:"currentSize"`
}

type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

func (c *counters) hit(backend string) {
	c.hits.Add(1)
	metrics.RecordCacheOp(backend, "hit")
}

func (c *counters) miss(backend string) {
	c.misses.Add(1)
	metrics.RecordCacheOp(backend, "miss")
}

func (c *counters) set(backend string) {
	c.sets.Add(1)
	metrics.RecordCacheOp(backend, "set")
}

func (c *counters) snapshot(size int) CacheStats {
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

type entry struct {
	value      stream.Result
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiration)
}

const backendMemory = "memory"

// MemoryCache is an in-process Cache with a background janitor.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   counters
	now     func() time.Time
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates an in-memory cache. A positive cleanupInterval
// starts a janitor that removes expired entries; call Stop to end it.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*entry),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	} else {
		close(c.done)
	}
	return c
}

// Get retrieves a result from the cache.
func (c *MemoryCache) Get(key string) (stream.Result, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.isExpired(c.now()) {
		c.stats.miss(backendMemory)
		return stream.Result{}, false
	}
	c.stats.hit(backendMemory)
	return e.value, true
}

// Set stores a result in the cache.
func (c *MemoryCache) Set(key string, value stream.Result, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &entry{value: value, expiration: c.now().Add(ttl)}
	c.mu.Unlock()
	c.stats.set(backendMemory)
}

// Delete removes a result from the cache.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every result.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return c.stats.snapshot(size)
}

// deleteExpired removes expired entries and returns how many were removed.
func (c *MemoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for key, e := range c.entries {
		if e.isExpired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.evictions.Add(int64(count))
	return count
}

// Stop ends the janitor and waits for it to exit.
func (c *MemoryCache) Stop() {
	c.once.Do(func() { close(c.stop) })
	<-c.done
}

func (c *MemoryCache) janitor(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

// noOpCache caches nothing.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache anything.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(string) (stream.Result, bool)         { return stream.Result{}, false }
func (noOpCache) Set(string, stream.Result, time.Duration) {}
func (noOpCache) Delete(string)                            {}
func (noOpCache) Clear()                                   {}
func (noOpCache) Stats() CacheStats                        { return CacheStats{} }

package cache

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUCache implements an LRU cache with optional TTL support
type LRUCache[K comparable, V any] struct {
	cache    *lru.Cache[K, *entry[V]]
	config   *CacheConfig
	stats    *CacheStats
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once
	// removing suppresses eviction counting for explicit removals
	removing bool
}

// NewLRUCache creates a new LRU cache
func NewLRUCache[K comparable, V any](config *CacheConfig) (*LRUCache[K, V], error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	c := &LRUCache[K, V]{
		config:   config,
		stats:    &CacheStats{MaxSize: config.MaxSize},
		stopChan: make(chan struct{}),
	}

	cache, err := lru.NewWithEvict[K, *entry[V]](config.MaxSize, func(K, *entry[V]) {
		if !c.removing {
			c.stats.Evictions++
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create LRU cache")
	}
	c.cache = cache

	// Start cleanup goroutine
	if config.DefaultTTL > 0 && config.CleanupInterval > 0 {
		go c.cleanup()
	}

	return c, nil
}

// Get retrieves a value from the cache
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, exists := c.cache.Get(key)
	if !exists {
		c.stats.Misses++
		return zero, false
	}

	// Check if expired
	if e.IsExpired() {
		c.remove(key)
		c.stats.Expirations++
		c.stats.Misses++
		return zero, false
	}

	// Update access info
	e.Touch()
	c.stats.Hits++
	return e.Value, true
}

// Set stores a value in the cache. A non-positive ttl uses the default.
func (c *LRUCache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	now := time.Now()
	e := &entry[V]{
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	c.cache.Add(key, e)
	c.stats.Size = c.cache.Len()
}

// Delete removes a value from the cache
func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remove(key)
	c.stats.Size = c.cache.Len()
}

// Clear removes all values from the cache
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removing = true
	c.cache.Purge()
	c.removing = false
	c.stats.Size = 0
}

func (c *LRUCache[K, V]) remove(key K) {
	c.removing = true
	c.cache.Remove(key)
	c.removing = false
}

// Stats returns cache statistics
func (c *LRUCache[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := *c.stats
	stats.Size = c.cache.Len()
	stats.CalculateHitRate()
	return stats
}

// Reset resets cache statistics
func (c *LRUCache[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats = &CacheStats{MaxSize: c.config.MaxSize}
}

// Close stops the cache and cleans up resources
func (c *LRUCache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// cleanup periodically removes expired entries
func (c *LRUCache[K, V]) cleanup() {
	ticker := time.NewTicker(c.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupExpired()
		case <-c.stopChan:
			return
		}
	}
}

// cleanupExpired removes expired entries
func (c *LRUCache[K, V]) cleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredCount := 0
	for _, key := range c.cache.Keys() {
		if e, exists := c.cache.Peek(key); exists && e.IsExpired() {
			c.remove(key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.stats.Expirations += int64(expiredCount)
		c.stats.Size = c.cache.Len()
	}
}

// Keys returns all cache keys from oldest to newest
func (c *LRUCache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Keys()
}

// Len returns the number of items in the cache
func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Len()
}

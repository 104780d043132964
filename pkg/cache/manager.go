package cache

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Observer is notified of every lookup outcome
type Observer interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// CacheManager combines an LRU cache with in-flight deduplication
type CacheManager[K comparable, V any] struct {
	cache        *LRUCache[K, V]
	deduplicator *Deduplicator[V]
	config       *CacheConfig
	observer     Observer
}

// NewCacheManager creates a new cache manager. observer may be nil.
func NewCacheManager[K comparable, V any](config *CacheConfig, observer Observer) (*CacheManager[K, V], error) {
	if config == nil {
		config = DefaultCacheConfig()
	}
	c, err := NewLRUCache[K, V](config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cache")
	}

	return &CacheManager[K, V]{
		cache:        c,
		deduplicator: NewDeduplicator[V](),
		config:       config,
		observer:     observer,
	}, nil
}

// GetOrCompute returns the cached value for key, computing and caching it on
// a miss. Concurrent misses on one key share a single computation.
func (cm *CacheManager[K, V]) GetOrCompute(ctx context.Context, key K, fn func() (V, error)) (V, bool, error) {
	if v, ok := cm.cache.Get(key); ok {
		cm.notify(true)
		return v, true, nil
	}
	cm.notify(false)

	v, err := cm.deduplicator.Execute(ctx, fmt.Sprint(key), func() (V, error) {
		v, err := fn()
		if err != nil {
			return v, err
		}
		cm.cache.Set(key, v, 0)
		return v, nil
	})
	return v, false, err
}

func (cm *CacheManager[K, V]) notify(hit bool) {
	if cm.observer == nil {
		return
	}
	if hit {
		cm.observer.RecordCacheHit()
	} else {
		cm.observer.RecordCacheMiss()
	}
}

// Get retrieves a value from the cache
func (cm *CacheManager[K, V]) Get(key K) (V, bool) {
	return cm.cache.Get(key)
}

// Set stores a value in the cache
func (cm *CacheManager[K, V]) Set(key K, value V) {
	cm.cache.Set(key, value, 0)
}

// Clear removes all values and resets deduplication statistics
func (cm *CacheManager[K, V]) Clear() {
	cm.cache.Clear()
	cm.deduplicator.Reset()
}

// Stats returns cache and deduplication statistics
func (cm *CacheManager[K, V]) Stats() (CacheStats, DedupStats) {
	return cm.cache.Stats(), cm.deduplicator.Stats()
}

// Close closes the cache manager and cleans up resources
func (cm *CacheManager[K, V]) Close() {
	cm.cache.Close()
}

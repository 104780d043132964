package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Deduplicator collapses concurrent computations of the same key
type Deduplicator[V any] struct {
	group singleflight.Group
	mu    sync.RWMutex
	stats DedupStats
}

// DedupStats represents deduplication statistics
type DedupStats struct {
	Requests     int64 `json:"requests"`
	Deduplicated int64 `json:"deduplicated"`
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator[V any]() *Deduplicator[V] {
	return &Deduplicator[V]{}
}

// Execute runs fn once per key among concurrent callers. It returns early
// with the context error if ctx is done before the shared call finishes.
func (d *Deduplicator[V]) Execute(ctx context.Context, key string, fn func() (V, error)) (V, error) {
	var zero V
	ch := d.group.DoChan(key, func() (interface{}, error) {
		return fn()
	})

	select {
	case <-ctx.Done():
		d.record(false)
		return zero, ctx.Err()
	case res := <-ch:
		d.record(res.Shared)
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (d *Deduplicator[V]) record(shared bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Requests++
	if shared {
		d.stats.Deduplicated++
	}
}

// Stats returns deduplication statistics
func (d *Deduplicator[V]) Stats() DedupStats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stats
}

// DedupRate is the share of requests served by another caller's computation
func (d *Deduplicator[V]) DedupRate() float64 {
	s := d.Stats()
	if s.Requests == 0 {
		return 0.0
	}
	return float64(s.Deduplicated) / float64(s.Requests)
}

// Reset resets all statistics
func (d *Deduplicator[V]) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats = DedupStats{}
}

package cache

import (
	"time"
)

// entry wraps a cached value
type entry[V any] struct {
	Value        V
	CreatedAt    time.Time
	ExpiresAt    time.Time
	AccessCount  int
	LastAccessed time.Time
}

// IsExpired checks if the entry is expired. A zero ExpiresAt never expires.
func (e *entry[V]) IsExpired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// Touch updates the access time and count
func (e *entry[V]) Touch() {
	e.LastAccessed = time.Now()
	e.AccessCount++
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	MaxSize         int           `json:"max_size" mapstructure:"max_size"`                 // Maximum number of entries
	DefaultTTL      time.Duration `json:"default_ttl" mapstructure:"default_ttl"`           // Zero keeps entries until evicted
	CleanupInterval time.Duration `json:"cleanup_interval" mapstructure:"cleanup_interval"` // How often to clean expired entries
}

// DefaultCacheConfig returns a default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		MaxSize:         1024,
		DefaultTTL:      0,
		CleanupInterval: time.Minute,
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Size        int     `json:"size"`
	MaxSize     int     `json:"max_size"`
	HitRate     float64 `json:"hit_rate"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
}

// CalculateHitRate calculates the hit rate
func (s *CacheStats) CalculateHitRate() {
	total := s.Hits + s.Misses
	if total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	} else {
		s.HitRate = 0.0
	}
}

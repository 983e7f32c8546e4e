// Package cache stores model responses keyed by request fingerprint.
//
// Two backends are provided: an in-process LRU with TTL, and Redis for
// sharing responses between runs and machines.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a byte-value store with per-entry expiry.
type Cache interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the backend's TTL.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases backend resources.
	Close() error
}

// Stats is a snapshot of LRU counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// HitRate returns the cache hit rate.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total)
}

// LRU is an in-memory cache with least-recently-used eviction and TTL.
type LRU struct {
	entries *expirable.LRU[string, []byte]

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

var _ Cache = (*LRU)(nil)

// NewLRU creates an LRU cache.
func NewLRU(maxSize int, ttl time.Duration) (*LRU, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("max cache size must be at least 1, got %d", maxSize)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive, got %v", ttl)
	}
	return &LRU{
		entries: expirable.NewLRU[string, []byte](maxSize, nil, ttl),
	}, nil
}

// Get implements Cache. Expired entries miss.
func (c *LRU) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return value, true, nil
}

// Set implements Cache.
func (c *LRU) Set(_ context.Context, key string, value []byte) error {
	if evicted := c.entries.Add(key, value); evicted {
		c.evictions.Add(1)
	}
	return nil
}

// Close implements Cache.
func (c *LRU) Close() error {
	c.entries.Purge()
	return nil
}

// Stats returns a snapshot of the counters.
func (c *LRU) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
	}
}

// Package cache provides the content-hash-keyed artifact cache shared by
// all compilation workers.
//
// Lookups consult an in-memory map, then a bloom filter of persisted
// hashes, then the backing store. Production of code for a hash goes
// through singleflight, so at most one generation per hash is in flight
// and concurrent tasks with identical content share its result.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/snc/internal/metrics"
)

// Backend is the persistent side of the cache.
type Backend interface {
	LookupCache(ctx context.Context, hash string) (string, bool, error)
	CacheHashes(ctx context.Context) ([]string, error)
}

// Stats counts lookups since the cache was created. A Produce call that
// receives another caller's generation counts one miss and one hit.
type Stats struct {
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	BloomNegatives int64 `json:"bloom_negatives"`
	Generations    int64 `json:"generations"`
}

// Cache is safe for concurrent use.
type Cache struct {
	backend Backend
	logger  *zap.Logger
	metrics *metrics.Collector

	mu     sync.RWMutex
	mem    map[string]string
	filter *bloom.BloomFilter
	warmed bool

	group singleflight.Group

	hits, misses, bloomNegatives, generations atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithCapacity sizes the bloom filter for n hashes at a 1% false positive rate.
func WithCapacity(n uint) Option {
	return func(c *Cache) {
		c.filter = bloom.NewWithEstimates(n, 0.01)
	}
}

// New creates a cache over backend. A nil backend gives a memory-only cache.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		logger:  zap.NewNop(),
		mem:     make(map[string]string),
		filter:  bloom.NewWithEstimates(100_000, 0.01),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warm loads every persisted hash into the bloom filter. Until Warm
// succeeds, every memory miss falls through to the backend.
func (c *Cache) Warm(ctx context.Context) error {
	if c.backend == nil {
		c.mu.Lock()
		c.warmed = true
		c.mu.Unlock()
		return nil
	}

	hashes, err := c.backend.CacheHashes(ctx)
	if err != nil {
		return fmt.Errorf("warm cache: %w", err)
	}

	c.mu.Lock()
	for _, h := range hashes {
		c.filter.AddString(h)
	}
	c.warmed = true
	c.mu.Unlock()

	c.logger.Debug("cache warmed", zap.Int("hashes", len(hashes)))
	return nil
}

// Lookup returns cached code for hash.
func (c *Cache) Lookup(ctx context.Context, hash string) (string, bool, error) {
	c.mu.RLock()
	code, ok := c.mem[hash]
	maybe := !c.warmed || c.filter.TestString(hash)
	c.mu.RUnlock()

	if ok {
		c.record(metrics.CacheHit)
		return code, true, nil
	}
	if !maybe || c.backend == nil {
		if !maybe {
			c.bloomNegatives.Add(1)
			c.metrics.ObserveCacheLookup(metrics.CacheBloomNegative)
		}
		c.record(metrics.CacheMiss)
		return "", false, nil
	}

	code, ok, err := c.backend.LookupCache(ctx, hash)
	if err != nil {
		return "", false, fmt.Errorf("cache lookup %s: %w", hash, err)
	}
	if !ok {
		c.record(metrics.CacheMiss)
		return "", false, nil
	}

	c.Remember(hash, code)
	c.record(metrics.CacheHit)
	return code, true, nil
}

// Remember records code for hash in memory and in the bloom filter. It is
// called as soon as code is generated, before it is persisted, so sibling
// tasks see it immediately.
func (c *Cache) Remember(hash, code string) {
	c.mu.Lock()
	c.mem[hash] = code
	c.filter.AddString(hash)
	c.mu.Unlock()
}

// Replace swaps the remembered code for hash if it still equals from.
// Returns true if the swap happened.
func (c *Cache) Replace(hash, from, to string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.mem[hash]; ok && cur != from {
		return false
	}
	c.mem[hash] = to
	c.filter.AddString(hash)
	return true
}

// Produce returns code for hash, calling fn only on a miss. Concurrent
// Produce calls for one hash share a single fn invocation; hit is true for
// every caller whose code came from the cache or from another caller's fn.
func (c *Cache) Produce(ctx context.Context, hash string, fn func(context.Context) (string, error)) (code string, hit bool, err error) {
	code, ok, err := c.Lookup(ctx, hash)
	if err != nil {
		return "", false, err
	}
	if ok {
		return code, true, nil
	}

	ran := false
	v, err, _ := c.group.Do(hash, func() (any, error) {
		ran = true

		// Another flight may have finished between Lookup and Do.
		c.mu.RLock()
		code, ok := c.mem[hash]
		c.mu.RUnlock()
		if ok {
			ran = false
			return code, nil
		}

		code, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.generations.Add(1)
		c.Remember(hash, code)
		return code, nil
	})
	if err != nil {
		return "", false, err
	}

	if !ran {
		c.hits.Add(1)
	}
	return v.(string), !ran, nil
}

// Forget drops hash from memory. The bloom filter cannot forget; a later
// lookup falls through to the backend.
func (c *Cache) Forget(hash string) {
	c.mu.Lock()
	delete(c.mem, hash)
	c.mu.Unlock()
}

// Len returns the number of hashes held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

// Stats returns lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		BloomNegatives: c.bloomNegatives.Load(),
		Generations:    c.generations.Load(),
	}
}

func (c *Cache) record(result string) {
	switch result {
	case metrics.CacheHit:
		c.hits.Add(1)
	case metrics.CacheMiss:
		c.misses.Add(1)
	}
	c.metrics.ObserveCacheLookup(result)
}

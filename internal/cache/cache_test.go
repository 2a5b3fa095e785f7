package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snc/internal/metrics"
)

type fakeBackend struct {
	mu      sync.Mutex
	rows    map[string]string
	lookups int
	err     error
}

func newFakeBackend(rows map[string]string) *fakeBackend {
	if rows == nil {
		rows = map[string]string{}
	}
	return &fakeBackend{rows: rows}
}

func (b *fakeBackend) LookupCache(_ context.Context, hash string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lookups++
	if b.err != nil {
		return "", false, b.err
	}
	code, ok := b.rows[hash]
	return code, ok, nil
}

func (b *fakeBackend) CacheHashes(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	out := make([]string, 0, len(b.rows))
	for h := range b.rows {
		out = append(out, h)
	}
	return out, nil
}

func (b *fakeBackend) lookupCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookups
}

func TestLookupFallsThroughToBackend(t *testing.T) {
	backend := newFakeBackend(map[string]string{"h1": "code1"})
	c := New(backend)
	ctx := context.Background()

	code, ok, err := c.Lookup(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "code1", code)

	// Second lookup is served from memory.
	_, ok, err = c.Lookup(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, backend.lookupCount())
	assert.Equal(t, 1, c.Len())
}

func TestWarmedBloomSkipsBackendForUnknownHashes(t *testing.T) {
	backend := newFakeBackend(map[string]string{"known": "k"})
	m := metrics.NewCollector()
	c := New(backend, WithMetrics(m), WithCapacity(1000))
	ctx := context.Background()

	require.NoError(t, c.Warm(ctx))

	_, ok, err := c.Lookup(ctx, "definitely-unknown-hash")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, backend.lookupCount(), "bloom negative must not touch the backend")
	assert.Equal(t, int64(1), c.Stats().BloomNegatives)

	_, ok, err = c.Lookup(ctx, "known")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, backend.lookupCount())
}

func TestUnwarmedCacheAlwaysAsksBackend(t *testing.T) {
	backend := newFakeBackend(nil)
	c := New(backend)

	_, ok, err := c.Lookup(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, backend.lookupCount())
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestLookupBackendError(t *testing.T) {
	backend := newFakeBackend(nil)
	backend.err = errors.New("disk gone")
	c := New(backend)

	_, _, err := c.Lookup(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")

	assert.Error(t, c.Warm(context.Background()))
}

func TestMemoryOnlyCache(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	require.NoError(t, c.Warm(ctx))

	_, ok, err := c.Lookup(ctx, "h")
	require.NoError(t, err)
	assert.False(t, ok)

	c.Remember("h", "code")
	code, ok, err := c.Lookup(ctx, "h")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "code", code)

	c.Forget("h")
	_, ok, _ = c.Lookup(ctx, "h")
	assert.False(t, ok)
}

func TestProduceCallsFnOnlyOnMiss(t *testing.T) {
	c := New(nil)
	ctx := context.Background()
	calls := 0
	gen := func(context.Context) (string, error) {
		calls++
		return "generated", nil
	}

	code, hit, err := c.Produce(ctx, "h", gen)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "generated", code)

	code, hit, err = c.Produce(ctx, "h", gen)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "generated", code)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), c.Stats().Generations)
}

func TestProduceErrorIsNotCached(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	_, _, err := c.Produce(ctx, "h", func(context.Context) (string, error) {
		return "", errors.New("model down")
	})
	require.Error(t, err)

	code, hit, err := c.Produce(ctx, "h", func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", code)
}

func TestProduceSingleWriterPerHash(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	gen := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const n = 8
	var wg sync.WaitGroup
	hits := make([]bool, n)
	codes := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, hit, err := c.Produce(ctx, "same", gen)
			assert.NoError(t, err)
			hits[i] = hit
			codes[i] = code
		}(i)
	}

	// Give every goroutine time to join the flight before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	misses := 0
	for i := 0; i < n; i++ {
		assert.Equal(t, "shared", codes[i])
		if !hits[i] {
			misses++
		}
	}
	assert.Equal(t, 1, misses, "exactly one caller generated")
}

func TestReplace(t *testing.T) {
	c := New(nil)
	c.Remember("h", "v1")

	assert.False(t, c.Replace("h", "v0", "x"))
	assert.True(t, c.Replace("h", "v1", "v2"))

	code, ok, err := c.Lookup(context.Background(), "h")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", code)
}

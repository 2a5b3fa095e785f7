package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.ObserveCacheLookup(CacheHit)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.CacheLookups.WithLabelValues(CacheHit)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheLookups.WithLabelValues(CacheHit)))
}

func TestObserve(t *testing.T) {
	c := NewCollector()

	c.ObserveTask("compiled", 10*time.Millisecond)
	c.ObserveTask("compiled", 20*time.Millisecond)
	c.ObserveTask("errored", time.Millisecond)
	c.ObserveCall("generate", nil)
	c.ObserveCall("generate", errors.New("boom"))
	c.ObserveRetry("generate")
	c.ObserveRepair(true)
	c.ObserveRepair(false)
	c.ObserveBatch("ok", 3, time.Second)
	c.SetBreakerState("collaborator", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Tasks.WithLabelValues("compiled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Tasks.WithLabelValues("errored")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CollaboratorCalls.WithLabelValues("generate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CollaboratorErrors.WithLabelValues("generate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Retries.WithLabelValues("generate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Repairs.WithLabelValues("fixed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Repairs.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Batches.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.BreakerState.WithLabelValues("collaborator")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.ObserveTask("compiled", time.Second)
		c.ObserveCacheLookup(CacheMiss)
		c.ObserveCall("validate", nil)
		c.ObserveRetry("validate")
		c.ObserveRepair(true)
		c.ObserveBatch("ok", 1, time.Second)
		c.SetBreakerState("x", 0)
	})
	assert.Nil(t, c.Registry())
	assert.NoError(t, c.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.ObserveCacheLookup(CacheBloomNegative)

	path := filepath.Join(t.TempDir(), "snc.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `snc_cache_lookups_total{result="bloom_negative"} 1`))

	assert.NoError(t, c.WriteTextfile(""), "empty path disables export")
}

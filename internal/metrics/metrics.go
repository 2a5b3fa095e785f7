// Package metrics exposes Prometheus metrics for compilation batches.
//
// Each Collector owns its registry, so tests and embedders can create as
// many as they like without duplicate-registration panics. All methods are
// safe on a nil *Collector, which records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "snc"

// Cache lookup results.
const (
	CacheHit           = "hit"
	CacheMiss          = "miss"
	CacheBloomNegative = "bloom_negative"
)

// Collector holds all Prometheus metrics for snc.
type Collector struct {
	registry *prometheus.Registry

	Tasks              *prometheus.CounterVec
	TaskDuration       *prometheus.HistogramVec
	CacheLookups       *prometheus.CounterVec
	CollaboratorCalls  *prometheus.CounterVec
	CollaboratorErrors *prometheus.CounterVec
	Retries            *prometheus.CounterVec
	Repairs            *prometheus.CounterVec
	Batches            *prometheus.CounterVec
	BatchDuration      prometheus.Histogram
	Levels             prometheus.Histogram
	BreakerState       *prometheus.GaugeVec
}

// NewCollector creates a collector with a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "tasks_total",
				Help:      "Compilation tasks by outcome",
			},
			[]string{"outcome"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "task_duration_seconds",
				Help:      "Compilation task duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cache_lookups_total",
				Help:      "Artifact cache lookups by result",
			},
			[]string{"result"},
		),
		CollaboratorCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "collaborator_calls_total",
				Help:      "Calls to generation, validation, evaluation and repair collaborators",
			},
			[]string{"operation"},
		),
		CollaboratorErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "collaborator_errors_total",
				Help:      "Collaborator calls that returned an error",
			},
			[]string{"operation"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "retries_total",
				Help:      "Collaborator call retries",
			},
			[]string{"operation"},
		),
		Repairs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "repairs_total",
				Help:      "Self-repair attempts by result",
			},
			[]string{"result"},
		),
		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "batches_total",
				Help:      "Compilation batches by status",
			},
			[]string{"status"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "batch_duration_seconds",
				Help:      "Compilation batch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		Levels: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "batch_levels",
				Help:      "Number of levels per compilation batch",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),
		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}

	registry.MustRegister(
		c.Tasks,
		c.TaskDuration,
		c.CacheLookups,
		c.CollaboratorCalls,
		c.CollaboratorErrors,
		c.Retries,
		c.Repairs,
		c.Batches,
		c.BatchDuration,
		c.Levels,
		c.BreakerState,
	)

	return c
}

// Registry returns the Prometheus registry for this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveTask records one finished task.
func (c *Collector) ObserveTask(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Tasks.WithLabelValues(outcome).Inc()
	c.TaskDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveCacheLookup records a cache lookup result (CacheHit, CacheMiss,
// CacheBloomNegative).
func (c *Collector) ObserveCacheLookup(result string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveCall records a collaborator call and whether it failed.
func (c *Collector) ObserveCall(operation string, err error) {
	if c == nil {
		return
	}
	c.CollaboratorCalls.WithLabelValues(operation).Inc()
	if err != nil {
		c.CollaboratorErrors.WithLabelValues(operation).Inc()
	}
}

// ObserveRetry records one retry of a collaborator call.
func (c *Collector) ObserveRetry(operation string) {
	if c == nil {
		return
	}
	c.Retries.WithLabelValues(operation).Inc()
}

// ObserveRepair records one self-repair attempt.
func (c *Collector) ObserveRepair(fixed bool) {
	if c == nil {
		return
	}
	result := "failed"
	if fixed {
		result = "fixed"
	}
	c.Repairs.WithLabelValues(result).Inc()
}

// ObserveBatch records a finished batch.
func (c *Collector) ObserveBatch(status string, levels int, d time.Duration) {
	if c == nil {
		return
	}
	c.Batches.WithLabelValues(status).Inc()
	c.Levels.Observe(float64(levels))
	c.BatchDuration.Observe(d.Seconds())
}

// SetBreakerState records a circuit breaker state (0 closed, 1 half-open, 2 open).
func (c *Collector) SetBreakerState(name string, state int) {
	if c == nil {
		return
	}
	c.BreakerState.WithLabelValues(name).Set(float64(state))
}

// WriteTextfile writes the current metrics in the Prometheus text format,
// suitable for the node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

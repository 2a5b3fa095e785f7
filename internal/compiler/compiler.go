package compiler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/snc/internal/cache"
	"github.com/roach88/snc/internal/depgraph"
	"github.com/roach88/snc/internal/ir"
	"github.com/roach88/snc/internal/metrics"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// Compiler executes level plans. It is safe to run one batch at a time per
// Compiler; concurrent batches must use separate Compilers or be serialised
// by the caller.
type Compiler struct {
	persist Persistence
	cache   *cache.Cache
	collab  Collaborators

	workers        int
	parallel       bool
	validate       bool
	repairAttempts int
	retry          RetryPolicy

	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
	ids     ir.InstanceGenerator
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithWorkers sets the pool size. Values below 1 are treated as 1.
func WithWorkers(n int) Option {
	return func(c *Compiler) {
		if n < 1 {
			n = 1
		}
		c.workers = n
	}
}

// WithSequential selects the sequential variant: same steps, no pool.
func WithSequential() Option {
	return func(c *Compiler) {
		c.parallel = false
	}
}

// WithValidation enables or disables the validation step.
func WithValidation(enabled bool) Option {
	return func(c *Compiler) {
		c.validate = enabled
	}
}

// WithRepairAttempts bounds the self-repair loop. Zero disables it.
func WithRepairAttempts(n int) Option {
	return func(c *Compiler) {
		if n < 0 {
			n = 0
		}
		c.repairAttempts = n
	}
}

// WithRetryPolicy sets the per-call retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Compiler) {
		c.retry = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Compiler) {
		c.metrics = m
	}
}

// WithBatchIDs sets the generator for batch ids.
func WithBatchIDs(g ir.InstanceGenerator) Option {
	return func(c *Compiler) {
		c.ids = g
	}
}

// New creates a Compiler. collab.Generator must be non-nil.
func New(p Persistence, ac *cache.Cache, collab Collaborators, opts ...Option) (*Compiler, error) {
	if p == nil {
		return nil, fmt.Errorf("compiler: persistence is required")
	}
	if collab.Generator == nil {
		return nil, fmt.Errorf("compiler: generator is required")
	}
	if ac == nil {
		ac = cache.New(nil)
	}

	c := &Compiler{
		persist:  p,
		cache:    ac,
		collab:   collab,
		workers:  DefaultWorkers,
		parallel: true,
		validate: true,
		retry:    DefaultRetryPolicy(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/roach88/snc/internal/compiler"),
		ids:      ir.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Compile runs every token in plan, level by level. tokens must contain a
// token for every node ID in the plan.
//
// Level i+1 starts only after every task of level i has finished. The
// context is checked between levels; on cancellation the remaining tokens
// are reported as errored with StageCancel and the returned error is the
// context's. Task failures never produce an error here.
func (c *Compiler) Compile(ctx context.Context, plan depgraph.Plan, tokens []ir.Token) (*Report, error) {
	start := time.Now()
	byID := make(map[int64]ir.Token, len(tokens))
	for _, t := range tokens {
		byID[t.ID] = t
	}
	for _, level := range plan.Levels {
		for _, n := range level {
			if _, ok := byID[n.ID]; !ok {
				return nil, fmt.Errorf("compile: no token for planned node %s (id %d)", n.Key, n.ID)
			}
		}
	}

	report := &Report{
		BatchID: c.ids.Generate(),
		Levels:  len(plan.Levels),
		Results: make([]TaskResult, 0, plan.Len()),
	}

	ctx, span := c.tracer.Start(ctx, "compiler.Batch", trace.WithAttributes(
		attribute.String("batch.id", report.BatchID),
		attribute.Int("batch.levels", len(plan.Levels)),
		attribute.Int("batch.tasks", plan.Len()),
	))
	defer span.End()

	c.logger.Info("batch started",
		zap.String("batch_id", report.BatchID),
		zap.Int("levels", len(plan.Levels)),
		zap.Int("tasks", plan.Len()),
		zap.Bool("parallel", c.parallel))

	run := c.runLevelSequential
	if c.parallel {
		p := c.startPool(widest(plan))
		defer p.stop()
		run = p.runLevel
	}

	var cancelErr error
	for li, level := range plan.Levels {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			report.Cancelled = true
			for ri, rest := range plan.Levels[li:] {
				for _, n := range rest {
					report.Results = append(report.Results, cancelled(byID[n.ID], li+ri, err))
				}
			}
			break
		}

		levelCtx, levelSpan := c.tracer.Start(ctx, "compiler.Level",
			trace.WithAttributes(attribute.Int("level", li), attribute.Int("level.tasks", len(level))))
		tasks := make([]ir.Token, len(level))
		for i, n := range level {
			tasks[i] = byID[n.ID]
		}
		results := run(levelCtx, li, tasks)
		levelSpan.End()

		report.Results = append(report.Results, results...)
		c.logger.Debug("level finished", zap.Int("level", li), zap.Int("tasks", len(level)))
	}

	report.Duration = time.Since(start)
	c.metrics.ObserveBatch(report.Status(), report.Levels, report.Duration)
	c.logger.Info("batch finished",
		zap.String("batch_id", report.BatchID),
		zap.String("status", report.Status()),
		zap.String("summary", report.Summary()),
		zap.Duration("duration", report.Duration))

	if cancelErr != nil {
		return report, fmt.Errorf("compile cancelled: %w", cancelErr)
	}
	return report, nil
}

// runLevelSequential runs every task of a level on the calling goroutine.
func (c *Compiler) runLevelSequential(ctx context.Context, level int, tasks []ir.Token) []TaskResult {
	results := make([]TaskResult, len(tasks))
	for i, t := range tasks {
		results[i] = c.runTask(ctx, t, level)
	}
	return results
}

// job is one task handed to a pool worker. The worker writes the result to
// *out and marks the level barrier done.
type job struct {
	ctx     context.Context
	token   ir.Token
	level   int
	out     *TaskResult
	barrier *sync.WaitGroup
}

// pool is a fixed set of workers reused across every level of one batch.
type pool struct {
	c       *Compiler
	jobs    chan job
	workers sync.WaitGroup
}

func (c *Compiler) startPool(width int) *pool {
	n := c.workers
	if width < n {
		n = width
	}
	if n < 1 {
		n = 1
	}

	p := &pool{c: c, jobs: make(chan job)}
	for i := 0; i < n; i++ {
		p.workers.Add(1)
		go p.work()
	}
	c.logger.Debug("worker pool started", zap.Int("workers", n))
	return p
}

func (p *pool) work() {
	defer p.workers.Done()
	for j := range p.jobs {
		*j.out = p.c.runTask(j.ctx, j.token, j.level)
		j.barrier.Done()
	}
}

// runLevel dispatches every task of a level and waits for all of them.
func (p *pool) runLevel(ctx context.Context, level int, tasks []ir.Token) []TaskResult {
	results := make([]TaskResult, len(tasks))
	var barrier sync.WaitGroup
	barrier.Add(len(tasks))
	for i, t := range tasks {
		p.jobs <- job{ctx: ctx, token: t, level: level, out: &results[i], barrier: &barrier}
	}
	barrier.Wait()
	return results
}

func (p *pool) stop() {
	close(p.jobs)
	p.workers.Wait()
}

func widest(plan depgraph.Plan) int {
	w := 0
	for _, level := range plan.Levels {
		if len(level) > w {
			w = len(level)
		}
	}
	return w
}

func cancelled(t ir.Token, level int, err error) TaskResult {
	te := &TaskError{Stage: StageCancel, TokenID: t.ID, Err: err}
	return TaskResult{
		TokenID: t.ID,
		Key:     t.Key(),
		Level:   level,
		Outcome: ir.OutcomeErrored,
		Err:     te,
		Error:   te.Error(),
	}
}

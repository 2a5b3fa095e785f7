package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/depgraph"
	"github.com/roach88/snc/internal/diff"
	"github.com/roach88/snc/internal/ir"
	"github.com/roach88/snc/internal/metrics"
	"github.com/roach88/snc/internal/narrative"
	"github.com/roach88/snc/internal/store"
)

// Engine runs document updates against one store. Updates are serialised:
// a Compiler runs one batch at a time.
type Engine struct {
	store    *store.Store
	compiler *compiler.Compiler

	logger      *zap.Logger
	metrics     *metrics.Collector
	metricsFile string
	tracer      trace.Tracer
	uuids       ir.InstanceGenerator

	mu    sync.Mutex
	queue *updateQueue
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the collector whose textfile is written after each batch.
func WithMetrics(m *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMetricsFile writes the Prometheus textfile to path after each batch.
func WithMetricsFile(path string) Option {
	return func(e *Engine) { e.metricsFile = path }
}

// WithInstanceIDs sets the generator for token instance UUIDs.
func WithInstanceIDs(g ir.InstanceGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.uuids = g
		}
	}
}

// New creates an Engine.
func New(s *store.Store, c *compiler.Compiler, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, errors.New("engine: store is required")
	}
	if c == nil {
		return nil, errors.New("engine: compiler is required")
	}
	e := &Engine{
		store:    s,
		compiler: c,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("github.com/roach88/snc/internal/engine"),
		uuids:    ir.UUIDv7Generator{},
		queue:    newUpdateQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Persistence adapts a store to the compiler's per-task unit of work.
func Persistence(s *store.Store) compiler.Persistence {
	return compiler.PersistenceFunc(func(tokenID int64) compiler.UnitOfWork {
		return s.NewUnitOfWork(tokenID)
	})
}

// UpdateResult describes one completed update.
type UpdateResult struct {
	Document    ir.Document            `json:"document"`
	Diff        ir.DiffSummary         `json:"diff"`
	Plan        depgraph.Plan          `json:"plan"`
	Report      *compiler.Report       `json:"report"`
	Diagnostics []narrative.Diagnostic `json:"diagnostics"`
	Unresolved  []depgraph.Unresolved  `json:"unresolved"`
}

// OK reports whether every scheduled token compiled or was served from cache.
func (r *UpdateResult) OK() bool {
	return r != nil && r.Report != nil && r.Report.OK()
}

// prepared is the pure front half of an update.
type prepared struct {
	data        []ir.TokenData
	diff        *ir.DiffResult
	graph       *depgraph.Graph
	work        map[ir.IdentityKey]bool
	diagnostics []narrative.Diagnostic
}

// prepare parses text, diffs it against the stored generation and builds
// the graph over the resulting generation. It writes nothing.
func (e *Engine) prepare(ctx context.Context, name, text string) (*prepared, error) {
	data, diags := narrative.Tokenize(text, e.uuids)
	e.logDiagnostics(name, diags)

	entries, err := e.store.ReadDocumentEntries(ctx, name)
	if err != nil {
		return nil, &UpdateError{Document: name, Stage: StageDiff, Err: err}
	}

	d, err := diff.Diff(entries, data)
	if err != nil {
		return nil, &UpdateError{Document: name, Stage: StageDiff, Err: err}
	}

	g, err := depgraph.Build(depgraph.NodesFromData(data))
	if err != nil {
		return nil, &UpdateError{Document: name, Stage: StageGraph, Err: err}
	}
	for _, u := range g.Unresolved() {
		e.logger.Warn("unresolved reference",
			zap.String("document", name),
			zap.String("from", u.From.String()),
			zap.String("name", u.Name))
	}

	return &prepared{
		data:        data,
		diff:        d,
		graph:       g,
		work:        workSet(d),
		diagnostics: diags,
	}, nil
}

// workSet is changed ∪ added ∪ pending. Dependents of a changed token are
// not included.
func workSet(d *ir.DiffResult) map[ir.IdentityKey]bool {
	work := make(map[ir.IdentityKey]bool, len(d.Changed)+len(d.Added))
	for _, c := range d.Changed {
		work[c.New.Key()] = true
	}
	for _, a := range d.Added {
		work[a.Key()] = true
	}
	for _, u := range d.Unchanged {
		if u.Pending() {
			work[u.Token.Key()] = true
		}
	}
	return work
}

func (e *Engine) logDiagnostics(name string, diags []narrative.Diagnostic) {
	for _, d := range diags {
		fields := []zap.Field{
			zap.String("document", name),
			zap.String("code", d.Code),
			zap.Int("line", d.Line),
		}
		if d.Severity == "warning" {
			e.logger.Warn(d.Message, fields...)
		} else {
			e.logger.Info(d.Message, fields...)
		}
	}
}

// Update replaces the named document's text and compiles the work set.
//
// A duplicate identity or a dependency cycle fails before anything is
// written. Task failures do not fail the update; they appear in the
// report. If ctx is cancelled between levels the partial result is
// returned together with the error.
func (e *Engine) Update(ctx context.Context, name, text string) (*UpdateResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.Update", trace.WithAttributes(
		attribute.String("document", name),
	))
	defer span.End()

	res, err := e.update(ctx, name, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (e *Engine) update(ctx context.Context, name, text string) (*UpdateResult, error) {
	p, err := e.prepare(ctx, name, text)
	if err != nil {
		e.logger.Error("update rejected", zap.String("document", name), zap.Error(err))
		return nil, err
	}

	doc, tokens, err := e.store.ApplyDiff(ctx, name, text, p.diff)
	if err != nil {
		return nil, &UpdateError{Document: name, Stage: StageApply, Err: err}
	}
	summary := p.diff.Summary()
	e.logger.Info("diff applied",
		zap.String("document", name),
		zap.Int64("revision", doc.Revision),
		zap.Int("removed", summary.Removed),
		zap.Int("changed", summary.Changed),
		zap.Int("added", summary.Added),
		zap.Int("work", len(p.work)))

	// The persisted generation has the same keys and edges as the
	// preflight graph; this rebuild binds token ids to the nodes.
	g, err := depgraph.Build(depgraph.NodesFromTokens(tokens))
	if err != nil {
		return nil, &UpdateError{Document: name, Stage: StageGraph, Err: err}
	}
	plan := g.Schedule(func(n depgraph.Node) bool { return p.work[n.Key] })

	res := &UpdateResult{
		Document:    doc,
		Diff:        summary,
		Plan:        plan,
		Diagnostics: p.diagnostics,
		Unresolved:  g.Unresolved(),
	}

	report, err := e.compiler.Compile(ctx, plan, tokens)
	res.Report = report
	if werr := e.metrics.WriteTextfile(e.metricsFile); werr != nil {
		e.logger.Warn("metrics textfile not written", zap.String("path", e.metricsFile), zap.Error(werr))
	}
	if err != nil {
		return res, &UpdateError{Document: name, Stage: StageCompile, Err: err}
	}
	return res, nil
}

// PlanResult is a dry-run update.
type PlanResult struct {
	Diff        *ir.DiffResult         `json:"-"`
	Summary     ir.DiffSummary         `json:"diff"`
	Graph       *depgraph.Graph        `json:"-"`
	Plan        depgraph.Plan          `json:"plan"`
	Diagnostics []narrative.Diagnostic `json:"diagnostics"`
	Unresolved  []depgraph.Unresolved  `json:"unresolved"`
}

// Plan runs parse, diff, graph and levels for text without writing
// anything. Nodes in the plan carry no token ids.
func (e *Engine) Plan(ctx context.Context, name, text string) (*PlanResult, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Plan", trace.WithAttributes(
		attribute.String("document", name),
	))
	defer span.End()

	p, err := e.prepare(ctx, name, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &PlanResult{
		Diff:        p.diff,
		Summary:     p.diff.Summary(),
		Graph:       p.graph,
		Plan:        p.graph.Schedule(func(n depgraph.Node) bool { return p.work[n.Key] }),
		Diagnostics: p.diagnostics,
		Unresolved:  p.graph.Unresolved(),
	}, nil
}

// Status is the persisted state of one document.
type Status struct {
	Document ir.Document     `json:"document"`
	Entries  []ir.TokenEntry `json:"entries"`
	Pending  int             `json:"pending"`
}

// Status returns the named document with its tokens and current artifacts.
func (e *Engine) Status(ctx context.Context, name string) (*Status, error) {
	doc, err := e.store.ReadDocument(ctx, name)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.ReadEntries(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	st := &Status{Document: doc, Entries: entries}
	for _, en := range entries {
		if en.Pending() {
			st.Pending++
		}
	}
	return st, nil
}

// Documents lists every stored document.
func (e *Engine) Documents(ctx context.Context) ([]ir.Document, error) {
	return e.store.ListDocuments(ctx)
}

// Remove deletes a document with its tokens and artifacts. Cache rows are
// kept. Reports whether the document existed.
func (e *Engine) Remove(ctx context.Context, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ok, err := e.store.DeleteDocument(ctx, name)
	if err != nil {
		return false, fmt.Errorf("remove %q: %w", name, err)
	}
	if ok {
		e.logger.Info("document removed", zap.String("document", name))
	}
	return ok, nil
}

// Submit queues an update for Run. A document already queued has its text
// replaced. Returns false after Stop.
func (e *Engine) Submit(name, text string) bool {
	return e.queue.Submit(Request{Name: name, Text: text})
}

// Handler receives the outcome of each update processed by Run.
type Handler func(name string, res *UpdateResult, err error)

// Run drains submitted updates one at a time until ctx is done or Stop is
// called. A failed update is passed to handle and does not stop the loop.
func (e *Engine) Run(ctx context.Context, handle Handler) error {
	e.logger.Debug("engine loop starting")
	for {
		if r, ok := e.queue.TryNext(); ok {
			res, err := e.Update(ctx, r.Name, r.Text)
			if err != nil {
				e.logger.Error("update failed", zap.String("document", r.Name), zap.Error(err))
			}
			if handle != nil {
				handle(r.Name, res, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.queue.Close()
			e.logger.Debug("engine loop stopping", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-e.queue.Wait():
			if e.queue.isClosed() && e.queue.Len() == 0 {
				e.logger.Debug("engine loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run finishes the queued updates and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

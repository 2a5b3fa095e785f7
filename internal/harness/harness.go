package harness

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/snc/internal/cache"
	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/depgraph"
	"github.com/roach88/snc/internal/diff"
	"github.com/roach88/snc/internal/engine"
	"github.com/roach88/snc/internal/ir"
	"github.com/roach88/snc/internal/store"
	"github.com/roach88/snc/internal/testutil"
)

// Option configures a scenario run.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger logs the pipeline while the scenario runs.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Run executes a scenario against a fresh in-memory store and checks every
// expectation. A non-nil error means the scenario could not be run at all;
// failed expectations are reported in the Result.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	h, err := newHarness(ctx, s, o)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	defer h.close()

	result := NewResult(s.Name)
	for i, rev := range s.Revisions {
		got, err := h.apply(ctx, rev)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: revisions[%d]: %w", s.Name, i, err)
		}
		result.Revisions = append(result.Revisions, got)
		checkRevision(result, i, rev.Expect, got)
	}
	return result, nil
}

// RunAll runs every scenario in dir in file name order.
func RunAll(ctx context.Context, dir string, opts ...Option) ([]*Result, error) {
	scenarios, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(scenarios))
	for _, s := range scenarios {
		r, err := Run(ctx, s, opts...)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

type harness struct {
	store  *store.Store
	engine *engine.Engine
	gen    *testutil.FakeGenerator
}

func newHarness(ctx context.Context, s *Scenario, o options) (*harness, error) {
	clock := testutil.NewDeterministicClock()
	st, err := store.Open(":memory:", store.WithClock(clock.Now))
	if err != nil {
		return nil, err
	}

	ac := cache.New(st, cache.WithLogger(o.logger))
	if err := ac.Warm(ctx); err != nil {
		st.Close()
		return nil, err
	}

	gen := testutil.NewFakeGenerator()
	collab := scriptCollaborators(s.Collaborators, gen)

	copts := []compiler.Option{
		compiler.WithRetryPolicy(compiler.NoRetry()),
		compiler.WithBatchIDs(testutil.NewFixedIDGenerator("batch")),
		compiler.WithValidation(!s.SkipValidation),
		compiler.WithRepairAttempts(s.RepairAttempts),
		compiler.WithLogger(o.logger),
	}
	if s.Workers > 0 {
		copts = append(copts, compiler.WithWorkers(s.Workers))
	}
	if s.Sequential {
		copts = append(copts, compiler.WithSequential())
	}
	c, err := compiler.New(engine.Persistence(st), ac, collab, copts...)
	if err != nil {
		st.Close()
		return nil, err
	}

	e, err := engine.New(st, c,
		engine.WithLogger(o.logger),
		engine.WithInstanceIDs(&ir.SequenceGenerator{}),
	)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &harness{store: st, engine: e, gen: gen}, nil
}

func scriptCollaborators(sc Script, gen *testutil.FakeGenerator) compiler.Collaborators {
	for _, f := range sc.FailGenerate {
		if f.Times > 0 {
			gen.FailTimes(f.Marker, f.Times, nil)
		} else {
			gen.FailOn(f.Marker, nil)
		}
	}
	for _, m := range sc.PanicGenerate {
		gen.PanicOn(m)
	}

	val := testutil.NewFakeValidator()
	for _, r := range sc.Reject {
		val.RejectOn(r.Marker, ir.Diagnostic{
			File:     "generated.ts",
			Line:     1,
			Char:     1,
			Severity: "error",
			Code:     "TS0000",
			Message:  r.Message,
		})
	}
	for _, m := range sc.ErrorValidate {
		val.ErrorOn(m, nil)
	}

	eval := testutil.NewFakeEvaluator()
	for _, m := range sc.FailEvaluate {
		eval.FailOn(m, nil)
	}

	collab := compiler.Collaborators{Generator: gen, Validator: val, Evaluator: eval}
	if sc.Fix != nil {
		collab.Fixer = testutil.NewFakeFixer(sc.Fix.From, sc.Fix.To)
	}
	return collab
}

// apply runs one revision. Rejections for duplicate identities and cycles
// are outcomes, not errors.
func (h *harness) apply(ctx context.Context, rev Revision) (RevisionResult, error) {
	got := RevisionResult{
		Document:  rev.DocumentName(),
		Levels:    [][]string{},
		Partition: (*compiler.Report)(nil).Partition(),
	}

	res, err := h.engine.Update(ctx, got.Document, rev.Text)
	switch {
	case err == nil:
	case diff.IsDuplicateIdentity(err):
		got.Error = ErrorDuplicateIdentity
	case depgraph.IsCycle(err):
		got.Error = ErrorCycle
	default:
		return got, err
	}

	if res != nil {
		got.Revision = res.Document.Revision
		got.Diff = res.Diff
		got.Levels = res.Plan.Names()
		got.Partition = res.Report.Partition()
	}
	got.GeneratorCalls = h.gen.Calls()
	return got, nil
}

func (h *harness) close() {
	h.store.Close()
}

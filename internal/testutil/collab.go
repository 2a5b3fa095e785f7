package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/ir"
)

// ErrScripted is returned by scripted failures that name no error.
var ErrScripted = errors.New("scripted failure")

// rule fires when a call's input contains marker. remaining < 0 means the
// rule never runs out.
type rule struct {
	marker    string
	err       error
	remaining int
	panics    bool
	rejects   bool
}

// script records calls and decides which scripted failure, if any, applies.
type script struct {
	mu    sync.Mutex
	rules []rule
	calls map[string]int
	total int
}

func (s *script) add(r rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.err == nil && !r.panics && !r.rejects {
		r.err = ErrScripted
	}
	s.rules = append(s.rules, r)
}

// hit records a call with input and returns the first matching rule.
func (s *script) hit(input string) (rule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[input]++
	s.total++

	for i := range s.rules {
		r := &s.rules[i]
		if r.remaining == 0 || !strings.Contains(input, r.marker) {
			continue
		}
		if r.remaining > 0 {
			r.remaining--
		}
		return *r, true
	}
	return rule{}, false
}

// Calls returns the number of calls made.
func (s *script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// CallsFor returns the number of calls made with exactly input.
func (s *script) CallsFor(input string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[input]
}

// GeneratedCode is the code FakeGenerator produces for content.
func GeneratedCode(content string) string {
	return "// generated by fake\n" + content + "\n"
}

// FakeGenerator is a scripted compiler.Generator. By default it returns
// GeneratedCode(content).
type FakeGenerator struct {
	script

	// Delay is slept on every call, honouring context cancellation.
	Delay time.Duration

	inflight    atomic.Int64
	maxInflight atomic.Int64
}

var _ compiler.Generator = (*FakeGenerator)(nil)

// NewFakeGenerator creates a generator with no scripted failures.
func NewFakeGenerator() *FakeGenerator {
	return &FakeGenerator{}
}

// FailOn makes every call whose content contains marker fail with err
// (ErrScripted if nil).
func (g *FakeGenerator) FailOn(marker string, err error) *FakeGenerator {
	g.add(rule{marker: marker, err: err, remaining: -1})
	return g
}

// FailTimes makes the next n calls whose content contains marker fail.
func (g *FakeGenerator) FailTimes(marker string, n int, err error) *FakeGenerator {
	g.add(rule{marker: marker, err: err, remaining: n})
	return g
}

// PanicOn makes every call whose content contains marker panic.
func (g *FakeGenerator) PanicOn(marker string) *FakeGenerator {
	g.add(rule{marker: marker, panics: true, remaining: -1})
	return g
}

// MaxConcurrent returns the highest number of overlapping calls observed.
func (g *FakeGenerator) MaxConcurrent() int {
	return int(g.maxInflight.Load())
}

// Generate implements compiler.Generator.
func (g *FakeGenerator) Generate(ctx context.Context, content string) (string, error) {
	n := g.inflight.Add(1)
	defer g.inflight.Add(-1)
	for {
		cur := g.maxInflight.Load()
		if n <= cur || g.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}

	r, matched := g.hit(content)
	if g.Delay > 0 {
		select {
		case <-time.After(g.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if matched {
		if r.panics {
			panic(fmt.Sprintf("scripted panic generating %q", r.marker))
		}
		return "", r.err
	}
	return GeneratedCode(content), nil
}

// FakeValidator is a scripted compiler.Validator. Code is valid unless a
// rule matches it.
type FakeValidator struct {
	script

	mu    sync.Mutex
	diags map[string][]ir.Diagnostic
}

var _ compiler.Validator = (*FakeValidator)(nil)

// NewFakeValidator creates a validator that accepts all code.
func NewFakeValidator() *FakeValidator {
	return &FakeValidator{diags: make(map[string][]ir.Diagnostic)}
}

// RejectOn makes code containing marker fail validation with diags.
func (v *FakeValidator) RejectOn(marker string, diags ...ir.Diagnostic) *FakeValidator {
	v.mu.Lock()
	v.diags[marker] = diags
	v.mu.Unlock()
	v.add(rule{marker: marker, rejects: true, remaining: -1})
	return v
}

// ErrorOn makes validation of code containing marker fail to run.
func (v *FakeValidator) ErrorOn(marker string, err error) *FakeValidator {
	if err == nil {
		err = ErrScripted
	}
	v.add(rule{marker: marker, err: err, remaining: -1})
	return v
}

// Validate implements compiler.Validator.
func (v *FakeValidator) Validate(_ context.Context, code string) (compiler.ValidationResult, error) {
	r, matched := v.hit(code)
	if !matched {
		return compiler.ValidationResult{Success: true}, nil
	}

	if !r.rejects {
		return compiler.ValidationResult{}, r.err
	}
	v.mu.Lock()
	diags := v.diags[r.marker]
	v.mu.Unlock()
	return compiler.ValidationResult{Success: false, Errors: diags}, nil
}

// FakeEvaluator is a scripted compiler.Evaluator returning Score and
// Feedback unless a rule matches.
type FakeEvaluator struct {
	script

	Score    float64
	Feedback string

	mu       sync.Mutex
	contexts []map[string]string
	scores   map[string]float64
}

var _ compiler.Evaluator = (*FakeEvaluator)(nil)

// NewFakeEvaluator creates an evaluator that scores everything 8.
func NewFakeEvaluator() *FakeEvaluator {
	return &FakeEvaluator{Score: 8, Feedback: "looks fine", scores: make(map[string]float64)}
}

// FailOn makes evaluation of code containing marker fail.
func (e *FakeEvaluator) FailOn(marker string, err error) *FakeEvaluator {
	e.add(rule{marker: marker, err: err, remaining: -1})
	return e
}

// ScoreOn makes code containing marker receive score.
func (e *FakeEvaluator) ScoreOn(marker string, score float64) *FakeEvaluator {
	e.mu.Lock()
	e.scores[marker] = score
	e.mu.Unlock()
	return e
}

// Contexts returns the context maps passed to Evaluate, in call order.
func (e *FakeEvaluator) Contexts() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]map[string]string, len(e.contexts))
	copy(out, e.contexts)
	return out
}

// Evaluate implements compiler.Evaluator.
func (e *FakeEvaluator) Evaluate(_ context.Context, code string, evalCtx map[string]string) (compiler.Evaluation, error) {
	e.mu.Lock()
	c := make(map[string]string, len(evalCtx))
	for k, v := range evalCtx {
		c[k] = v
	}
	e.contexts = append(e.contexts, c)
	score := e.Score
	for marker, s := range e.scores {
		if strings.Contains(code, marker) {
			score = s
		}
	}
	e.mu.Unlock()

	if r, matched := e.hit(code); matched {
		return compiler.Evaluation{}, r.err
	}
	return compiler.Evaluation{Score: score, Feedback: e.Feedback}, nil
}

// FakeFixer is a scripted compiler.Fixer that replaces Old with New.
type FakeFixer struct {
	script

	Old, New string

	mu        sync.Mutex
	summaries []string
}

var _ compiler.Fixer = (*FakeFixer)(nil)

// NewFakeFixer creates a fixer replacing every occurrence of from with to.
func NewFakeFixer(from, to string) *FakeFixer {
	return &FakeFixer{Old: from, New: to}
}

// FailOn makes fixing code containing marker fail.
func (f *FakeFixer) FailOn(marker string, err error) *FakeFixer {
	f.add(rule{marker: marker, err: err, remaining: -1})
	return f
}

// Summaries returns the diagnostic summaries passed to Fix, in call order.
func (f *FakeFixer) Summaries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.summaries))
	copy(out, f.summaries)
	return out
}

// Fix implements compiler.Fixer.
func (f *FakeFixer) Fix(_ context.Context, code, summary string) (string, error) {
	f.mu.Lock()
	f.summaries = append(f.summaries, summary)
	f.mu.Unlock()

	if r, matched := f.hit(code); matched {
		return "", r.err
	}
	return strings.ReplaceAll(code, f.Old, f.New), nil
}

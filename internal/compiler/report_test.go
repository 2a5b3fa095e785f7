package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/snc/internal/ir"
)

func result(kind ir.Kind, name string, o ir.Outcome) TaskResult {
	return TaskResult{Key: ir.IdentityKey{Kind: kind, Name: name}, Outcome: o}
}

func TestReport_Partition(t *testing.T) {
	r := &Report{Results: []TaskResult{
		result(ir.KindScene, "b", ir.OutcomeCompiled),
		result(ir.KindScene, "a", ir.OutcomeCompiled),
		result(ir.KindFunction, "f", ir.OutcomeCached),
		result(ir.KindComponent, "c", ir.OutcomeInvalid),
		result(ir.KindScene, "z", ir.OutcomeErrored),
	}}

	assert.Equal(t, Partition{
		Compiled: []string{"scene:a", "scene:b"},
		Cached:   []string{"function:f"},
		Invalid:  []string{"component:c"},
		Errored:  []string{"scene:z"},
	}, r.Partition())
	assert.Equal(t, "compiled=2 cached=1 invalid=1 errored=1", r.Summary())
	assert.False(t, r.OK())
	assert.Equal(t, "failed", r.Status())
}

func TestReport_Status(t *testing.T) {
	var nilReport *Report
	assert.Equal(t, "ok", nilReport.Status())
	assert.Equal(t, Partition{Compiled: []string{}, Cached: []string{}, Invalid: []string{}, Errored: []string{}}, nilReport.Partition())

	ok := &Report{Results: []TaskResult{result(ir.KindScene, "a", ir.OutcomeCached)}}
	assert.Equal(t, "ok", ok.Status())

	cancelled := &Report{Cancelled: true}
	assert.Equal(t, "cancelled", cancelled.Status())
}

func TestReport_Result(t *testing.T) {
	r := &Report{Results: []TaskResult{result(ir.KindScene, "a", ir.OutcomeCompiled)}}

	got, ok := r.Result(ir.IdentityKey{Kind: ir.KindScene, Name: "a"})
	assert.True(t, ok)
	assert.Equal(t, ir.OutcomeCompiled, got.Outcome)

	_, ok = r.Result(ir.IdentityKey{Kind: ir.KindComponent, Name: "a"})
	assert.False(t, ok)
}

func TestTaskError(t *testing.T) {
	inner := errors.New("boom")
	var err error = &TaskError{Stage: StageGenerate, TokenID: 7, Err: inner}

	assert.Equal(t, "token 7: generate: boom", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, StageGenerate, StageOf(err))
	assert.Equal(t, Stage(""), StageOf(inner))
}

func TestSummarizeDiagnostics(t *testing.T) {
	got := SummarizeDiagnostics([]ir.Diagnostic{
		{File: "a.ts", Line: 3, Char: 9, Severity: "error", Code: "TS2304", Message: "Cannot find name 'x'."},
		{Message: "bare message"},
	})
	assert.Equal(t, "a.ts(3,9): Cannot find name 'x'.\nbare message", got)
	assert.Equal(t, "", SummarizeDiagnostics(nil))
}

package compiler

import (
	"context"

	"github.com/roach88/snc/internal/ir"
)

// Generator produces code for a token's content.
type Generator interface {
	Generate(ctx context.Context, content string) (string, error)
}

// ValidationResult is the outcome of validating generated code.
type ValidationResult struct {
	Success bool            `json:"success"`
	Errors  []ir.Diagnostic `json:"errors,omitempty"`
}

// Validator checks generated code. A non-nil error means validation could
// not run; a failed check is reported through ValidationResult.
type Validator interface {
	Validate(ctx context.Context, code string) (ValidationResult, error)
}

// Evaluation is a quality judgement of valid code.
type Evaluation struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback,omitempty"`
}

// MinScore and MaxScore bound Evaluation.Score.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Evaluator scores valid code. The context map carries the token's kind,
// name and content.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, context map[string]string) (Evaluation, error)
}

// Fixer rewrites invalid code given a summary of its diagnostics.
type Fixer interface {
	Fix(ctx context.Context, code, summary string) (string, error)
}

// Collaborators groups the capabilities a Compiler calls. Generator is
// required; a nil Validator, Evaluator or Fixer skips that step.
type Collaborators struct {
	Generator Generator
	Validator Validator
	Evaluator Evaluator
	Fixer     Fixer
}

// UnitOfWork buffers one task's writes and commits them atomically.
// A unit of work belongs to exactly one task and is never shared.
type UnitOfWork interface {
	PutArtifact(a ir.Artifact)
	PutCache(hash, code string)
	SwapCache(hash, from, to string)
	Commit(ctx context.Context) (ir.Artifact, error)
	Discard()
}

// Persistence hands out units of work.
type Persistence interface {
	Begin(tokenID int64) UnitOfWork
}

// PersistenceFunc adapts a function to Persistence.
type PersistenceFunc func(tokenID int64) UnitOfWork

// Begin calls f.
func (f PersistenceFunc) Begin(tokenID int64) UnitOfWork {
	return f(tokenID)
}

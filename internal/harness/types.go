package harness

import (
	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/ir"
)

// Result is the outcome of one scenario.
type Result struct {
	Name string `json:"name"`

	// Pass is true when every expectation matched.
	Pass bool `json:"pass"`

	Errors    []string         `json:"errors,omitempty"`
	Revisions []RevisionResult `json:"revisions"`
}

// RevisionResult is what one revision produced.
type RevisionResult struct {
	Document string `json:"document"`

	// Revision is the stored revision number, 0 when the update was rejected.
	Revision int64 `json:"revision"`

	// Error is the rejection kind, empty when the update was applied.
	Error string `json:"error,omitempty"`

	Diff           ir.DiffSummary     `json:"diff"`
	Levels         [][]string         `json:"levels"`
	Partition      compiler.Partition `json:"partition"`
	GeneratorCalls int                `json:"generator_calls"`
}

// NewResult creates a passing result for the named scenario.
func NewResult(name string) *Result {
	return &Result{
		Name:      name,
		Pass:      true,
		Errors:    []string{},
		Revisions: []RevisionResult{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

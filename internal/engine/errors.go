package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/snc/internal/depgraph"
	"github.com/roach88/snc/internal/diff"
)

// Stage names the phase of an update that failed.
type Stage string

const (
	StageDiff    Stage = "diff"
	StageGraph   Stage = "graph"
	StageApply   Stage = "apply"
	StageCompile Stage = "compile"
)

// UpdateError is a failed document update. Diff and graph failures happen
// before any mutation; apply and compile failures happen after the store
// has been touched.
type UpdateError struct {
	Document string
	Stage    Stage
	Err      error
}

// Error implements the error interface.
func (e *UpdateError) Error() string {
	return fmt.Sprintf("update %q: %s: %v", e.Document, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *UpdateError) Unwrap() error { return e.Err }

// Preflight reports whether err was raised before the store was modified.
func Preflight(err error) bool {
	var ue *UpdateError
	if errors.As(err, &ue) {
		return ue.Stage == StageDiff || ue.Stage == StageGraph
	}
	return diff.IsDuplicateIdentity(err) || depgraph.IsCycle(err)
}

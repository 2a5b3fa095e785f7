package cli

import (
	"errors"

	"github.com/roach88/snc/internal/depgraph"
	"github.com/roach88/snc/internal/diff"
	"github.com/roach88/snc/internal/ir"
	"github.com/roach88/snc/internal/narrative"
)

// analysis is the offline front half of the pipeline: parse, flatten,
// identity check and dependency graph. It needs no store.
type analysis struct {
	Name        string
	Tokens      []ir.TokenData
	Diagnostics []narrative.Diagnostic
	Graph       *depgraph.Graph

	// Err is a duplicate identity or a cycle; Graph is nil when set.
	Err error
}

func analyze(name, text string) *analysis {
	tokens, diags := narrative.Tokenize(text, ir.UUIDv7Generator{})
	a := &analysis{Name: name, Tokens: tokens, Diagnostics: diags}

	if _, err := diff.Diff(nil, tokens); err != nil {
		a.Err = err
		return a
	}
	g, err := depgraph.Build(depgraph.NodesFromData(tokens))
	if err != nil {
		a.Err = err
		return a
	}
	a.Graph = g
	return a
}

// problem classifies a.Err for reports.
func (a *analysis) problem() string {
	var ce *depgraph.CycleDetectedError
	var de *diff.DuplicateIdentityError
	switch {
	case errors.As(a.Err, &ce):
		return "cycle"
	case errors.As(a.Err, &de):
		return "duplicate_identity"
	case a.Err != nil:
		return "error"
	}
	return ""
}

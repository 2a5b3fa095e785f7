package harness

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/snc/internal/ir"
)

// Snapshot renders a result as canonical JSON lines: a header line with the
// scenario name, pass flag and errors, then one line per revision.
func Snapshot(r *Result) ([]byte, error) {
	var buf bytes.Buffer

	header, err := ir.MarshalCanonical(map[string]any{
		"name":   r.Name,
		"pass":   r.Pass,
		"errors": append([]string{}, r.Errors...),
	})
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')

	for _, rev := range r.Revisions {
		line, err := ir.MarshalCanonical(revisionMap(rev))
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func revisionMap(rev RevisionResult) map[string]any {
	levels := make([]any, len(rev.Levels))
	for i, l := range rev.Levels {
		levels[i] = l
	}
	m := map[string]any{
		"document": rev.Document,
		"revision": rev.Revision,
		"diff": map[string]any{
			"removed":   rev.Diff.Removed,
			"changed":   rev.Diff.Changed,
			"added":     rev.Diff.Added,
			"unchanged": rev.Diff.Unchanged,
		},
		"levels": levels,
		"outcomes": map[string]any{
			"compiled": rev.Partition.Compiled,
			"cached":   rev.Partition.Cached,
			"invalid":  rev.Partition.Invalid,
			"errored":  rev.Partition.Errored,
		},
		"generator_calls": rev.GeneratorCalls,
	}
	if rev.Error != "" {
		m["error"] = rev.Error
	}
	return m
}

// RunWithGolden runs a scenario and compares its snapshot with
// testdata/golden/<name>.golden. Regenerate with go test -update.
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, s.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result with its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

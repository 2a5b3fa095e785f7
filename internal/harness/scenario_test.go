package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/pending_retry.yaml")
	require.NoError(t, err)

	assert.Equal(t, "pending_retry", s.Name)
	require.Len(t, s.Collaborators.FailGenerate, 1)
	assert.Equal(t, Failure{Marker: "FLAKY", Times: 1}, s.Collaborators.FailGenerate[0])
	require.Len(t, s.Revisions, 2)
	assert.Equal(t, DefaultDocument, s.Revisions[0].DocumentName())
	assert.Equal(t, "[Scene:A]\nFLAKY\n[Scene:B]\nsteady\n", s.Revisions[0].Text)

	want := s.Revisions[1].Expect
	require.NotNil(t, want.Diff)
	assert.Equal(t, 2, want.Diff.Unchanged)
	assert.Equal(t, [][]string{{"A"}}, want.Levels)
	assert.NotNil(t, want.Errored, "an empty list is still checked")
	assert.Empty(t, want.Errored)
	assert.Nil(t, want.Cached, "an absent list is not checked")
	require.NotNil(t, want.GeneratorCalls)
	assert.Equal(t, 3, *want.GeneratorCalls)
}

func TestLoadScenario_RejectsUnknownKeys(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/unknown_key.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recompiled")
}

func TestLoadScenario_RejectsUnknownErrorKind(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/bad_error_kind.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown error kind "explosion"`)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "description: d\nrevisions: [{text: x}]\n", "name is required"},
		{"no description", "name: n\nrevisions: [{text: x}]\n", "description is required"},
		{"no revisions", "name: n\ndescription: d\n", "revisions list is required"},
		{"negative workers", "name: n\ndescription: d\nworkers: -1\nrevisions: [{text: x}]\n", "workers must be non-negative"},
		{"bad key", "name: n\ndescription: d\nrevisions: [{text: x, expect: {compiled: [nokind]}}]\n", "missing ':'"},
		{"bad kind", "name: n\ndescription: d\nrevisions: [{text: x, expect: {compiled: ['widget:a']}}]\n", "widget"},
		{"fail without marker", "name: n\ndescription: d\ncollaborators: {fail_generate: [{times: 1}]}\nrevisions: [{text: x}]\n", "marker is required"},
		{"fix without from", "name: n\ndescription: d\ncollaborators: {fix: {to: y}}\nrevisions: [{text: x}]\n", "fix: from is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for i := 1; i < len(scenarios); i++ {
		assert.Less(t, scenarios[i-1].Name, scenarios[i].Name, "sorted by file name")
	}
}

func TestLoadDir_Empty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a scenario"), 0o644))

	_, err := LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no scenario files")
}

package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snc/internal/depgraph"
)

func TestParse_Text(t *testing.T) {
	out, err := execute(t, tempDB(t), "parse", "testdata/story.md")
	require.NoError(t, err)
	assert.Contains(t, out, "story: 3 token(s)")
	assert.Contains(t, out, "scene:Intro")
	assert.Contains(t, out, "refs=Door")
	assert.Contains(t, out, "function:knock")
}

func TestParse_JSON(t *testing.T) {
	out, err := execute(t, tempDB(t), "--format", "json", "parse", "testdata/story.md")
	require.NoError(t, err)

	var parsed ParseOutput
	decodeResponse(t, out, &parsed)
	assert.Equal(t, "story", parsed.Document)
	require.Len(t, parsed.Tokens, 3)
	assert.Equal(t, "Intro", parsed.Tokens[0].Name)
	assert.Equal(t, []string{"Door"}, parsed.Tokens[0].DependencyNames)
	assert.NotEmpty(t, parsed.Tokens[0].ContentHash)
}

func TestDeps_Renderings(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, db, "deps", "testdata/story.md")
	require.NoError(t, err)
	assert.Contains(t, out, "L0 function:knock")
	assert.Contains(t, out, "L2 scene:Intro -> component:Door")

	out, err = execute(t, db, "deps", "--render", "dot", "testdata/story.md")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph snc {"))
	assert.Contains(t, out, `"scene:Intro" -> "component:Door";`)

	out, err = execute(t, db, "--format", "json", "deps", "testdata/story.md")
	require.NoError(t, err)
	var export depgraph.Export
	decodeResponse(t, out, &export)
	assert.Equal(t, [][]string{{"function:knock"}, {"component:Door"}, {"scene:Intro"}}, export.Levels)
	assert.Len(t, export.Edges, 2)
}

func TestDeps_Errors(t *testing.T) {
	_, err := execute(t, tempDB(t), "deps", "--render", "svg", "testdata/story.md")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err := execute(t, tempDB(t), "deps", "testdata/cycle.md")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestValidate(t *testing.T) {
	out, err := execute(t, tempDB(t), "validate", "testdata/story.md", "testdata/unresolved.md")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ story: 3 token(s) in 3 level(s)")
	assert.Contains(t, out, `! scene:Lonely references unknown "Ghost"`)

	out, err = execute(t, tempDB(t), "validate", "testdata/story.md", "testdata/cycle.md", "testdata/dup.md")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 of 3 document(s) invalid")
	assert.Contains(t, out, "✗ cycle")
	assert.Contains(t, out, "✗ dup")
}

func TestValidate_JSON(t *testing.T) {
	out, err := execute(t, tempDB(t), "--format", "json", "validate", "testdata/cycle.md")
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	raw, ok := resp.Error.Details.([]any)
	require.True(t, ok)
	require.Len(t, raw, 1)

	first := raw[0].(map[string]any)
	assert.Equal(t, "cycle", first["problem"])
	assert.Equal(t, false, first["valid"])
}

func TestValidateDocument(t *testing.T) {
	r := validateDocument("dup", "[Scene:A]\nx\n[Scene:A]\ny\n")
	assert.False(t, r.Valid)
	assert.Equal(t, "duplicate_identity", r.Problem)

	r = validateDocument("ok", "[Scene:A]\nREF:B\n[Scene:B]\nb\n")
	assert.True(t, r.Valid)
	assert.Equal(t, 2, r.Levels)
	assert.Empty(t, r.Unresolved)
}

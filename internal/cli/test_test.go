package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommand_Passes(t *testing.T) {
	out, err := execute(t, tempDB(t), "test", "testdata/scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ pending_retry")
	assert.Contains(t, out, "✓ shared_content")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, tempDB(t), "--format", "json", "test", "testdata/scenarios", "--filter", "pending*")
	require.NoError(t, err)

	var result TestResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "pending_retry", result.Scenarios[0].Name)
}

func TestTestCommand_Failure(t *testing.T) {
	out, err := execute(t, tempDB(t), "test", "testdata/failing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_plan")
	assert.Contains(t, out, "levels: expected [[A] [B]], got [[A]]")
}

func TestTestCommand_GoldenMismatchAndUpdate(t *testing.T) {
	dir := t.TempDir()
	data, err := os.ReadFile("testdata/scenarios/pending_retry.yaml")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pending_retry.yaml"), data, 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	golden := filepath.Join(dir, "golden", "pending_retry.golden")
	require.NoError(t, os.WriteFile(golden, []byte("stale\n"), 0o644))

	out, err := execute(t, tempDB(t), "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")

	out, err = execute(t, tempDB(t), "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ pending_retry (golden updated)")

	want, err := os.ReadFile("testdata/scenarios/golden/pending_retry.golden")
	require.NoError(t, err)
	got, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	_, err = execute(t, tempDB(t), "test", dir)
	require.NoError(t, err)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, tempDB(t), "test", "testdata/nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

package collab

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snc/internal/ir"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestNewCommandValidator_RequiresCommand(t *testing.T) {
	_, err := NewCommandValidator(nil, nil)
	assert.Error(t, err)
}

func TestCommandValidator_Success(t *testing.T) {
	requireShell(t)
	// The unit file is passed as $0 and must contain the code.
	v, err := NewCommandValidator([]string{"sh", "-c", `grep -q "export" "$0"`}, nil)
	require.NoError(t, err)

	res, err := v.Validate(context.Background(), "export const x = 1;\n")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Errors)
}

func TestCommandValidator_FailureParsesDiagnostics(t *testing.T) {
	requireShell(t)
	script := `echo "$0(2,9): error TS2304: Cannot find name 'y'."; exit 2`
	v, err := NewCommandValidator([]string{"sh", "-c", script}, nil)
	require.NoError(t, err)

	res, err := v.Validate(context.Background(), "const x = y;\n")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, []ir.Diagnostic{{
		File: "unit.ts", Line: 2, Char: 9, Severity: "error", Code: "TS2304",
		Message: "Cannot find name 'y'.",
	}}, res.Errors)
}

func TestCommandValidator_SilentFailure(t *testing.T) {
	requireShell(t)
	v, err := NewCommandValidator([]string{"sh", "-c", "exit 3"}, nil)
	require.NoError(t, err)

	res, err := v.Validate(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "sh exited with status 3", res.Errors[0].Message)
}

func TestCommandValidator_MissingBinary(t *testing.T) {
	v, err := NewCommandValidator([]string{"snc-no-such-binary-xyz"}, nil)
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "x")
	assert.Error(t, err)
}

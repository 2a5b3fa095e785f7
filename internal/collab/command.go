package collab

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/ir"
)

// DefaultUnitFile is the file name generated code is written to before the
// validation command runs.
const DefaultUnitFile = "unit.ts"

// CommandValidator validates code by writing it to a temporary file and
// running an external command with the file path as its last argument,
// e.g. ["tsc", "--noEmit", "--strict"]. Exit status zero means valid; any
// other exit status means invalid, with diagnostics parsed from the
// command's combined output.
type CommandValidator struct {
	Command  []string
	UnitFile string
	Logger   *zap.Logger
}

var _ compiler.Validator = (*CommandValidator)(nil)

// NewCommandValidator creates a validator running command.
func NewCommandValidator(command []string, logger *zap.Logger) (*CommandValidator, error) {
	if len(command) == 0 {
		return nil, errors.New("validator command is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandValidator{Command: command, UnitFile: DefaultUnitFile, Logger: logger}, nil
}

// Validate implements compiler.Validator. An error means the command could
// not be run at all.
func (v *CommandValidator) Validate(ctx context.Context, code string) (compiler.ValidationResult, error) {
	dir, err := os.MkdirTemp("", "snc-validate-*")
	if err != nil {
		return compiler.ValidationResult{}, fmt.Errorf("validate: %w", err)
	}
	defer os.RemoveAll(dir)

	name := v.UnitFile
	if name == "" {
		name = DefaultUnitFile
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(code), 0o600); err != nil {
		return compiler.ValidationResult{}, fmt.Errorf("validate: %w", err)
	}

	args := append(append([]string{}, v.Command[1:]...), path)
	cmd := exec.CommandContext(ctx, v.Command[0], args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err = cmd.Run()
	if err == nil {
		return compiler.ValidationResult{Success: true}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || ctx.Err() != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return compiler.ValidationResult{}, fmt.Errorf("run %s: %w", v.Command[0], err)
	}

	diags := ParseDiagnostics(out.String())
	if len(diags) == 0 {
		diags = []ir.Diagnostic{{
			Severity: "error",
			Message:  fmt.Sprintf("%s exited with status %d", v.Command[0], exitErr.ExitCode()),
		}}
	}
	v.Logger.Debug("validation failed",
		zap.String("command", v.Command[0]),
		zap.Int("exit_code", exitErr.ExitCode()),
		zap.Int("diagnostics", len(diags)))
	return compiler.ValidationResult{Success: false, Errors: diags}, nil
}

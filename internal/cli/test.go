package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/snc/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern on the scenario name)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios against the pipeline with scripted collaborators.

Each scenario applies a sequence of document revisions to a fresh
in-memory store and checks the diff, level plan and outcomes of every
revision. When <scenarios-dir>/golden/<name>.golden exists, the outcome
snapshot must also match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable scenario)

Examples:
  snc test ./scenarios
  snc test ./scenarios --filter "cache-*"
  snc test ./scenarios --update
  snc test ./scenarios --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	if _, err := os.Stat(dir); err != nil {
		return out.Fail(ExitCommandError, CodeInput, fmt.Sprintf("scenarios directory not found: %s", dir), err)
	}
	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return out.Fail(ExitCommandError, CodeInput, "invalid filter pattern", err)
		}
	}

	scenarios, err := harness.LoadDir(dir)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInput, "failed to load scenarios", err)
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, s := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, s.Name); !ok {
				continue
			}
		}
		sr := runScenario(opts, dir, s, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if out.JSON() {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// runScenario executes one scenario and compares or updates its golden
// snapshot.
func runScenario(opts *TestOptions, dir string, s *harness.Scenario, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"

	fail := func(errs ...string) ScenarioResult {
		if text {
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: s.Name, Pass: false, Errors: errs}
	}

	result, err := harness.Run(cmd.Context(), s)
	if err != nil {
		return fail(fmt.Sprintf("execution failed: %v", err))
	}
	snapshot, err := harness.Snapshot(result)
	if err != nil {
		return fail(fmt.Sprintf("snapshot failed: %v", err))
	}

	goldenPath := goldenFilePath(dir, s.Name)
	switch {
	case opts.Update:
		if err := writeGolden(goldenPath, snapshot); err != nil {
			return fail(fmt.Sprintf("failed to update golden file: %v", err))
		}
	default:
		match, err := compareWithGolden(goldenPath, snapshot)
		if err != nil {
			return fail(fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			result.AddError("snapshot does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		return fail(result.Errors...)
	}
	if text {
		suffix := ""
		if opts.Update {
			suffix = " (golden updated)"
		}
		fmt.Fprintf(w, "✓ %s%s\n", s.Name, suffix)
	}
	return ScenarioResult{Name: s.Name, Pass: true}
}

// goldenFilePath returns <dir>/golden/<name>.golden.
func goldenFilePath(dir, name string) string {
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// compareWithGolden reports whether data matches the golden file. A missing
// golden file matches anything.
func compareWithGolden(path string, data []byte) (bool, error) {
	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return bytes.Equal(bytes.TrimRight(want, "\n"), bytes.TrimRight(data, "\n")), nil
}

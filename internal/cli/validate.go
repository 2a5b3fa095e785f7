package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/snc/internal/depgraph"
	"github.com/roach88/snc/internal/narrative"
)

// ValidationResult reports the offline checks for one document.
type ValidationResult struct {
	Document    string                 `json:"document"`
	Valid       bool                   `json:"valid"`
	Tokens      int                    `json:"tokens"`
	Levels      int                    `json:"levels"`
	Problem     string                 `json:"problem,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Diagnostics []narrative.Diagnostic `json:"diagnostics"`
	Unresolved  []depgraph.Unresolved  `json:"unresolved"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check documents without compiling them",
		Long: `Parse each document and check it the way compile would before
writing anything: duplicate unit identities and dependency cycles are
errors; parse diagnostics and unresolved references are reported as
warnings. Nothing is stored.

Exit codes:
  0 - All documents can be compiled
  1 - A document has a duplicate identity or a dependency cycle
  2 - Command error (missing file)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	w := cmd.OutOrStdout()

	var results []ValidationResult
	invalid := 0
	for _, file := range files {
		name, text, err := readDocument(file, "")
		if err != nil {
			return out.Fail(ExitCommandError, CodeInput, "failed to read document", err)
		}
		out.VerboseLog("Validating %s", file)

		r := validateDocument(name, text)
		results = append(results, r)
		if !r.Valid {
			invalid++
		}
		if !out.JSON() {
			writeValidationText(w, r)
		}
	}

	if invalid > 0 {
		if out.JSON() {
			if err := out.Error(CodeRejected, "validation failed", results); err != nil {
				return err
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d document(s) invalid", invalid, len(files)))
	}
	if out.JSON() {
		return out.Success(results)
	}
	return nil
}

func validateDocument(name, text string) ValidationResult {
	a := analyze(name, text)
	r := ValidationResult{
		Document:    name,
		Valid:       a.Err == nil,
		Tokens:      len(a.Tokens),
		Diagnostics: a.Diagnostics,
		Unresolved:  []depgraph.Unresolved{},
	}
	if r.Diagnostics == nil {
		r.Diagnostics = []narrative.Diagnostic{}
	}
	if a.Err != nil {
		r.Problem = a.problem()
		r.Error = a.Err.Error()
		return r
	}
	r.Levels = len(a.Graph.Levels().Levels)
	r.Unresolved = a.Graph.Unresolved()
	return r
}

func writeValidationText(w io.Writer, r ValidationResult) {
	if r.Valid {
		fmt.Fprintf(w, "✓ %s: %d token(s) in %d level(s)\n", r.Document, r.Tokens, r.Levels)
	} else {
		fmt.Fprintf(w, "✗ %s: %s\n", r.Document, r.Error)
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "  %s\n", d)
	}
	for _, u := range r.Unresolved {
		fmt.Fprintf(w, "  ! %s references unknown %q\n", u.From, u.Name)
	}
}

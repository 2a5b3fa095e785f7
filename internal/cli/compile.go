package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/snc/internal/compiler"
	"github.com/roach88/snc/internal/engine"
	"github.com/roach88/snc/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Name string // document name; only valid with a single file
}

// CompileOutput is one compiled file in JSON output.
type CompileOutput struct {
	File      string               `json:"file"`
	Status    string               `json:"status"`
	Result    *engine.UpdateResult `json:"result,omitempty"`
	Partition *compiler.Partition  `json:"partition,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <file>...",
		Short: "Compile narrative documents incrementally",
		Long: `Compile each file as a new revision of the document with the same
base name. Only changed, added and previously failed units are sent to
the generator; everything else keeps its stored artifact.

Exit codes:
  0 - Every scheduled unit compiled or was served from cache
  1 - Some units are invalid or errored
  2 - Command error (missing file, bad config, cycle, duplicate identity)

Examples:
  snc compile story.md
  snc compile --name intro drafts/intro-v3.md
  snc compile --config snc.yaml --format json chapters/*.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "document name (default: file base name)")

	return cmd
}

func runCompile(opts *CompileOptions, files []string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if opts.Name != "" && len(files) > 1 {
		return out.Fail(ExitCommandError, CodeInput, "--name requires exactly one file", nil)
	}
	if opts.Name == "" {
		if err := checkDocumentNames(files); err != nil {
			return out.Fail(ExitCommandError, CodeInput, "duplicate document name", err)
		}
	}

	ctx := cmd.Context()
	s, err := openStack(ctx, opts.RootOptions, cmd)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to start", err)
	}
	defer s.Close()

	var outputs []CompileOutput
	exit := ExitSuccess
	for _, file := range files {
		o, code := compileFile(opts, s, file, cmd)
		outputs = append(outputs, o)
		exit = max(exit, code)
	}

	if out.JSON() {
		if exit == ExitSuccess {
			return out.Success(outputs)
		}
		if err := out.Error(compileErrorCode(exit), "compilation failed", outputs); err != nil {
			return err
		}
	}

	if exit != ExitSuccess {
		return NewExitError(exit, "compilation failed")
	}
	return nil
}

func compileErrorCode(exit int) string {
	if exit == ExitCommandError {
		return CodeRejected
	}
	return CodeFailed
}

// compileFile runs one update and prints its text summary.
func compileFile(opts *CompileOptions, s *stack, file string, cmd *cobra.Command) (CompileOutput, int) {
	w := cmd.OutOrStdout()
	text := opts.Format != "json"
	o := CompileOutput{File: file}

	name, content, err := readDocument(file, opts.Name)
	if err != nil {
		o.Status, o.Error = "error", err.Error()
		if text {
			fmt.Fprintf(w, "✗ %s\n  %v\n", file, err)
		}
		return o, ExitCommandError
	}

	res, err := s.engine.Update(cmd.Context(), name, content)
	o.Result = res
	if res != nil {
		p := res.Report.Partition()
		o.Partition = &p
	}
	if err != nil {
		o.Status, o.Error = "error", err.Error()
		if text {
			fmt.Fprintf(w, "✗ %s\n  %v\n", name, err)
		}
		if engine.Preflight(err) {
			return o, ExitCommandError
		}
		return o, ExitFailure
	}

	o.Status = res.Report.Status()
	if text {
		writeUpdateText(w, res, opts.Verbose)
	}
	if !res.OK() {
		return o, ExitFailure
	}
	return o, ExitSuccess
}

func writeUpdateText(w io.Writer, res *engine.UpdateResult, verbose bool) {
	mark := "✓"
	if !res.OK() {
		mark = "✗"
	}
	d := res.Diff
	fmt.Fprintf(w, "%s %s (revision %d): removed=%d changed=%d added=%d unchanged=%d\n",
		mark, res.Document.Name, res.Document.Revision, d.Removed, d.Changed, d.Added, d.Unchanged)

	if res.Report != nil {
		fmt.Fprintf(w, "  %d unit(s) in %d level(s), %s in %s\n",
			res.Plan.Len(), len(res.Plan.Levels), res.Report.Summary(), formatDuration(res.Report.Duration))
		for _, r := range res.Report.Results {
			switch r.Outcome {
			case ir.OutcomeErrored:
				fmt.Fprintf(w, "  ✗ %s errored: %s\n", r.Key, r.Error)
			case ir.OutcomeInvalid:
				fmt.Fprintf(w, "  ✗ %s invalid\n", r.Key)
				for _, diag := range r.Artifact.Diagnostics {
					fmt.Fprintf(w, "      %s\n", diag)
				}
			default:
				if verbose {
					fmt.Fprintf(w, "  ✓ %s %s\n", r.Key, r.Outcome)
				}
			}
			for _, warn := range r.Warnings {
				fmt.Fprintf(w, "  ! %s: %s\n", r.Key, warn)
			}
		}
	}

	for _, u := range res.Unresolved {
		fmt.Fprintf(w, "  ! %s references unknown %q\n", u.From, u.Name)
	}
	if verbose {
		for _, diag := range res.Diagnostics {
			fmt.Fprintf(w, "  %s\n", strings.TrimSpace(diag.String()))
		}
	}
}

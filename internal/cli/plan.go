package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/snc/internal/engine"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Name string
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Show what compile would do",
		Long: `Diff a file against the stored generation of its document and print
the level plan compile would run. Nothing is written and no collaborator
is called.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "document name (default: file base name)")

	return cmd
}

func runPlan(opts *PlanOptions, file string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	name, text, err := readDocument(file, opts.Name)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInput, "failed to read document", err)
	}

	s, err := openStack(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to start", err)
	}
	defer s.Close()

	p, err := s.engine.Plan(cmd.Context(), name, text)
	if err != nil {
		if engine.Preflight(err) {
			return out.Fail(ExitCommandError, CodeRejected, "update would be rejected", err)
		}
		return out.Fail(ExitCommandError, CodeFailed, "plan failed", err)
	}

	if out.JSON() {
		return out.Success(p)
	}

	w := cmd.OutOrStdout()
	d := p.Summary
	fmt.Fprintf(w, "%s: removed=%d changed=%d added=%d unchanged=%d\n", name, d.Removed, d.Changed, d.Added, d.Unchanged)
	if p.Plan.Len() == 0 {
		fmt.Fprintln(w, "  nothing to compile")
	}
	for i, level := range p.Plan.Levels {
		fmt.Fprintf(w, "  level %d:", i)
		for _, n := range level {
			fmt.Fprintf(w, " %s", n.Key)
		}
		fmt.Fprintln(w)
	}
	for _, u := range p.Unresolved {
		fmt.Fprintf(w, "  ! %s references unknown %q\n", u.From, u.Name)
	}
	if opts.Verbose {
		for _, diag := range p.Diagnostics {
			fmt.Fprintf(w, "  %s\n", diag)
		}
	}
	return nil
}

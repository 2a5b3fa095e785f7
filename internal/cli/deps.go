package cli

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// DepsOptions holds flags for the deps command.
type DepsOptions struct {
	*RootOptions
	Render string // text | json | dot
}

var validRenders = []string{"text", "json", "dot"}

// NewDepsCommand creates the deps command.
func NewDepsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DepsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deps <file>",
		Short: "Render the dependency graph of a document",
		Long: `Build the dependency graph of a document and render it.

  text  one line per unit: level, key and dependencies
  json  nodes, edges, levels and unresolved references
  dot   Graphviz, one rank per level

Examples:
  snc deps story.md
  snc deps --render dot story.md | dot -Tsvg > story.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Render, "render", "r", "text", "graph rendering (text|json|dot)")

	return cmd
}

func runDeps(opts *DepsOptions, file string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	if !slices.Contains(validRenders, opts.Render) {
		return out.Fail(ExitCommandError, CodeInput,
			fmt.Sprintf("invalid render %q: must be one of %v", opts.Render, validRenders), nil)
	}

	name, text, err := readDocument(file, "")
	if err != nil {
		return out.Fail(ExitCommandError, CodeInput, "failed to read document", err)
	}
	a := analyze(name, text)
	if a.Err != nil {
		return out.Fail(ExitCommandError, CodeRejected, "cannot build dependency graph", a.Err)
	}

	if out.JSON() {
		return out.Success(a.Graph.Export())
	}

	w := cmd.OutOrStdout()
	switch opts.Render {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a.Graph.Export())
	case "dot":
		return a.Graph.WriteDOT(w)
	default:
		return a.Graph.WriteText(w)
	}
}

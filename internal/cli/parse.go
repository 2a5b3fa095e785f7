package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/snc/internal/ir"
	"github.com/roach88/snc/internal/narrative"
)

// ParseOutput is the JSON form of a parsed document.
type ParseOutput struct {
	Document    string                 `json:"document"`
	Tokens      []ir.TokenData         `json:"tokens"`
	Diagnostics []narrative.Diagnostic `json:"diagnostics"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Show the units a document flattens into",
		Long: `Parse a narrative document and list its tokens in document order:
kind, name, content hash, and the names it references. Nothing is
stored and no code is generated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runParse(opts *RootOptions, file string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	name, text, err := readDocument(file, "")
	if err != nil {
		return out.Fail(ExitCommandError, CodeInput, "failed to read document", err)
	}
	tokens, diags := narrative.Tokenize(text, ir.UUIDv7Generator{})
	if diags == nil {
		diags = []narrative.Diagnostic{}
	}

	if out.JSON() {
		return out.Success(ParseOutput{Document: name, Tokens: tokens, Diagnostics: diags})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d token(s)\n", name, len(tokens))
	for _, t := range tokens {
		line := fmt.Sprintf("  %3d %-24s %s", t.Order, t.Key(), shortHash(t.ContentHash))
		if len(t.DependencyNames) > 0 {
			line += " refs=" + strings.Join(t.DependencyNames, ",")
		}
		fmt.Fprintln(w, line)
		if opts.Verbose {
			for _, l := range strings.Split(t.Content, "\n") {
				fmt.Fprintf(w, "        | %s\n", l)
			}
		}
	}
	for _, d := range diags {
		fmt.Fprintf(w, "  %s\n", d)
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

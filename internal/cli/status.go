package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/snc/internal/engine"
	"github.com/roach88/snc/internal/ir"
	"github.com/roach88/snc/internal/store"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [document]",
		Short: "Show stored documents and artifact state",
		Long: `Without arguments, list every stored document with its revision.
With a document name, list its tokens and the outcome of each token's
current artifact. Tokens marked pending are compiled again on the next
revision.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	s, err := openStack(cmd.Context(), opts, cmd)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to start", err)
	}
	defer s.Close()

	if len(args) == 0 {
		docs, err := s.engine.Documents(cmd.Context())
		if err != nil {
			return out.Fail(ExitCommandError, CodeFailed, "failed to list documents", err)
		}
		if out.JSON() {
			return out.Success(docs)
		}
		writeDocumentsText(cmd.OutOrStdout(), docs)
		return nil
	}

	st, err := s.engine.Status(cmd.Context(), args[0])
	if errors.Is(err, store.ErrNotFound) {
		return out.Fail(ExitCommandError, CodeNotFound, fmt.Sprintf("unknown document %q", args[0]), err)
	}
	if err != nil {
		return out.Fail(ExitCommandError, CodeFailed, "failed to read status", err)
	}
	if out.JSON() {
		return out.Success(st)
	}
	writeStatusText(cmd.OutOrStdout(), st)
	return nil
}

func writeDocumentsText(w io.Writer, docs []ir.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%-24s revision %-4d updated %s\n", d.Name, d.Revision, d.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
}

func writeStatusText(w io.Writer, st *engine.Status) {
	fmt.Fprintf(w, "%s (revision %d): %d token(s), %d pending\n",
		st.Document.Name, st.Document.Revision, len(st.Entries), st.Pending)
	for _, e := range st.Entries {
		state := "missing"
		if e.Artifact != nil {
			state = string(e.Artifact.Outcome)
		}
		mark := " "
		if e.Pending() {
			mark = "*"
		}
		fmt.Fprintf(w, "  %s %-24s %s\n", mark, e.Token.Key(), state)
	}
}

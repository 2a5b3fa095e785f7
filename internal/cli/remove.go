package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <document>",
		Short: "Delete a stored document",
		Long: `Delete a document with its tokens and artifacts. Cached code is kept,
so recompiling the same content later is served from the cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runRemove(opts *RootOptions, name string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	s, err := openStack(cmd.Context(), opts, cmd)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to start", err)
	}
	defer s.Close()

	ok, err := s.engine.Remove(cmd.Context(), name)
	if err != nil {
		return out.Fail(ExitCommandError, CodeFailed, "failed to remove document", err)
	}
	if !ok {
		return out.Fail(ExitCommandError, CodeNotFound, fmt.Sprintf("unknown document %q", name), nil)
	}
	if out.JSON() {
		return out.Success(map[string]string{"removed": name})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ removed %s\n", name)
	return nil
}

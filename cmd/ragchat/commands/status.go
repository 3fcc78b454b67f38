package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the document, its processing state and configuration",
		Long: `Show the uploaded document, its processing state and the retrieval
configuration. Once processing has started the configuration shown is the
one the document was processed with.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := restored(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	snap := a.session.Snapshot()
	fmt.Fprintln(cmd.OutOrStdout(), snap)
	if snap.Polling {
		fmt.Fprintln(cmd.OutOrStdout(), "(processing; run `ragchat process --wait` to follow it)")
	}
	return nil
}

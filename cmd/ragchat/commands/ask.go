package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
	"ragchat/internal/service"
)

func NewAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question about the processed document",
		Example: `  ragchat ask "What are the main findings?"
  ragchat ask how is the data collected`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := restored(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := a.session.Ask(cmd.Context(), strings.Join(args, " "))
	if errors.Is(err, service.ErrNotReady) {
		return errors.New("the document is not processed yet; run `ragchat process` first")
	}
	if err != nil {
		return err
	}
	return printOutcome(cmd, out)
}

func printOutcome(cmd *cobra.Command, out service.Outcome) error {
	w := cmd.OutOrStdout()
	for _, e := range out.Entries {
		switch e.Kind {
		case domain.KindEnhancedQuery:
			fmt.Fprintf(w, "Enhanced query (%s): %s\n\n", e.Mode, e.Content)
		case domain.KindAnswer:
			fmt.Fprintln(w, e.Content)
		case domain.KindError:
			return errors.New(e.Content)
		}
	}
	return nil
}

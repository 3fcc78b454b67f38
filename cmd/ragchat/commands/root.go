package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool
)

// NewRootCmd builds the ragchat command tree. Running it without a
// subcommand opens the chat.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with a PDF through a remote RAG service",
		Long: `ragchat uploads one PDF to a processing-and-query service, builds its
retrieval index with the options you choose, and lets you ask questions
about it from the terminal.

The service token is read from the environment variable named in the
config (RAGCHAT_TOKEN by default); a .env file in the working directory
is loaded first.`,
		SilenceUsage: true,
		RunE:         runChat,
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config (default ./config.yaml, then ~/.config/ragchat/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging, mirrored to stderr for one-shot commands")

	cmd.AddCommand(
		NewChatCmd(),
		NewStatusCmd(),
		NewUploadCmd(),
		NewDeleteCmd(),
		NewProcessCmd(),
		NewAskCmd(),
		NewWatchCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)
	return cmd
}

func Execute() error {
	return NewRootCmd().Execute()
}

package commands

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/service"
	"ragchat/internal/tui"
)

func NewChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat (default)",
		Long: `Open the interactive chat.

The session is restored from the service on start: an uploaded document and
its processing state are picked up, and polling resumes if the document is
still being processed. Type /help inside the chat for commands.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()

	p := tea.NewProgram(tui.New(a.session), tea.WithAltScreen())
	a.session.Controller.SetOnChange(func(ev service.JobEvent) {
		p.Send(tui.JobChangedMsg{Event: ev})
	})
	_, err = p.Run()
	return err
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpgo "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"ragchat/internal/mcpserver"
)

func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document over MCP on stdio",
		Long: `Run an MCP (Model Context Protocol) server on stdin/stdout so an agent
can check the document status and ask questions about it.

Tools: document_status, ask_document.`,
		Example: `  # claude_desktop_config.json
  # {
  #   "mcpServers": {
  #     "ragchat": { "command": "ragchat", "args": ["mcp"] }
  #   }
  # }`,
		Args: cobra.NoArgs,
		RunE: runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// stdout carries the protocol; never mirror logs to the console here.
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.session.Restore(ctx); err != nil {
		a.log.Warn("MCP", "Session restore failed", map[string]interface{}{"error": err.Error()})
	}

	server := mcpserver.New(a.session, versionInfo.Version)
	errCh := make(chan error, 1)
	go func() {
		errCh <- mcpgo.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	}
}

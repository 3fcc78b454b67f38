package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"ragchat/internal/domain"
	"ragchat/internal/service"
)

// Handlers serves MCP tool calls against one session.
type Handlers struct {
	session *service.Session
}

// New creates an MCP server with the document tools registered.
func New(session *service.Session, version string) *mcpserver.MCPServer {
	server := mcpserver.NewMCPServer("ragchat", version)
	RegisterTools(server, session)
	return server
}

// RegisterTools adds document_status and ask_document to server.
func RegisterTools(server *mcpserver.MCPServer, session *service.Session) *Handlers {
	h := &Handlers{session: session}

	server.AddTool(mcp.Tool{
		Name:        "document_status",
		Description: "Report the uploaded document, its processing state and the retrieval configuration it was processed with.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, h.DocumentStatus)

	server.AddTool(mcp.Tool{
		Name:        "ask_document",
		Description: "Ask a question about the processed document. Fails if processing has not finished.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer from the document",
				},
			},
			Required: []string{"question"},
		},
	}, h.AskDocument)

	return h
}

func (h *Handlers) DocumentStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(h.session.Snapshot().String()), nil
}

func (h *Handlers) AskDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	out, err := h.session.Ask(ctx, question)
	switch {
	case errors.Is(err, service.ErrNotReady):
		return mcp.NewToolResultError("the document is not processed yet; run `ragchat process` first"), nil
	case err != nil:
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	for _, e := range out.Entries {
		switch e.Kind {
		case domain.KindEnhancedQuery:
			fmt.Fprintf(&b, "Enhanced query (%s): %s\n\n", e.Mode, e.Content)
		case domain.KindAnswer:
			b.WriteString(e.Content)
		case domain.KindError:
			return mcp.NewToolResultError(e.Content), nil
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

package domain

import (
	"context"
	"io"
)

// ProcessingService is the remote processing-and-query service. It owns
// chunking, embedding, retrieval, reranking and answer generation.
type ProcessingService interface {
	// Document returns the uploaded document, or nil when none exists.
	Document(ctx context.Context) (*Document, error)
	// Status reads the processing status. It never mutates server state.
	Status(ctx context.Context) (StatusReport, error)
	// Process starts building the index with cfg.
	Process(ctx context.Context, cfg Config) error
	// Query asks a question against the ready index.
	Query(ctx context.Context, question string, mode EnhancementMode) (QueryResult, error)
	// Upload stores a PDF, replacing any previous document.
	Upload(ctx context.Context, name string, r io.Reader) error
	// Delete removes the named document.
	Delete(ctx context.Context, name string) error
}

// Logger is the structured logger used across the core.
type Logger interface {
	Debug(module, message string, details map[string]interface{})
	Info(module, message string, details map[string]interface{})
	Warn(module, message string, details map[string]interface{})
	Error(module, message string, details map[string]interface{})
}

package domain

import "time"

// EntryKind distinguishes the four kinds of conversation entries.
type EntryKind string

const (
	KindQuestion      EntryKind = "question"
	KindEnhancedQuery EntryKind = "enhanced_query"
	KindAnswer        EntryKind = "answer"
	KindError         EntryKind = "error"
)

// Entry is one immutable line of the conversation.
type Entry struct {
	ID        string
	Kind      EntryKind
	Content   string
	Mode      EnhancementMode // enhanced_query only
	Context   string          // answer only, never rendered verbatim
	Timestamp time.Time
}

// HasContext reports whether an answer came with supporting source material.
func (e Entry) HasContext() bool {
	return e.Kind == KindAnswer && e.Context != ""
}

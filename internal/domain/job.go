package domain

import "time"

// Document is the single uploaded file a session works against.
type Document struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

// JobState is the processing state of the session's document.
type JobState string

const (
	StateNotStarted JobState = "not_started"
	StateProcessing JobState = "processing"
	StateReady      JobState = "ready"
)

// ParseJobState maps a server status string onto a JobState. Anything unknown
// (including the service's "error") is returned verbatim and is neither
// processing nor ready.
func ParseJobState(s string) JobState {
	return JobState(s)
}

// Known reports whether s is one of the three lifecycle states.
func (s JobState) Known() bool {
	switch s {
	case StateNotStarted, StateProcessing, StateReady:
		return true
	}
	return false
}

// Job is the processing job for the session's document.
type Job struct {
	Document  Document
	State     JobState
	Config    Config
	StartedAt time.Time
	// Unrecognized carries config values the service reported on restore
	// that Config could not represent.
	Unrecognized map[string]string
}

// StatusReport is the decoded body of a status request. Nil fields were absent
// from the payload.
type StatusReport struct {
	State                JobState
	ChunkingMethod       *ChunkingMethod
	HybridSearch         *bool
	UseReranker          *bool
	QueryEnhancementMode *EnhancementMode
	Message              string
	// Unrecognized holds config fields whose value this client does not
	// know, keyed by wire name. Those fields are left out of Overlay.
	Unrecognized map[string]string
}

// Overlay returns base with every field the report carried replaced.
func (r StatusReport) Overlay(base Config) Config {
	return ConfigPatch{
		ChunkingMethod:       r.ChunkingMethod,
		HybridSearch:         r.HybridSearch,
		UseReranker:          r.UseReranker,
		QueryEnhancementMode: r.QueryEnhancementMode,
	}.Apply(base)
}

// QueryResult is a successful answer from the service.
type QueryResult struct {
	Answer        string
	EnhancedQuery string
	Mode          EnhancementMode
	Context       string
}

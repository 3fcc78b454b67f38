package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ragchat/internal/conversation"
	"ragchat/internal/domain"
)

type SessionOptions struct {
	Config       domain.Config
	PollInterval time.Duration
	MaxBackoff   time.Duration
	MaxWait      time.Duration
	Logger       domain.Logger
}

// Session is the explicit context one user works in: a single document,
// its processing job, the configuration bundle and the conversation.
// Presentation layers receive it by reference.
type Session struct {
	Service    domain.ProcessingService
	Bundle     *Bundle
	Controller *Controller
	Queries    *QuerySession
	Log        *conversation.Log
}

func NewSession(svc domain.ProcessingService, opts SessionOptions) *Session {
	bundle := NewBundle(opts.Config)
	ctrl := NewController(svc, bundle, ControllerOptions{
		PollInterval: opts.PollInterval,
		MaxBackoff:   opts.MaxBackoff,
		MaxWait:      opts.MaxWait,
		Logger:       opts.Logger,
	})
	log := conversation.NewLog()
	return &Session{
		Service:    svc,
		Bundle:     bundle,
		Controller: ctrl,
		Queries:    NewQuerySession(svc, ctrl, log, opts.Logger),
		Log:        log,
	}
}

func (s *Session) Restore(ctx context.Context) error {
	return s.Controller.Restore(ctx)
}

// Ask submits a question; see QuerySession.Submit.
func (s *Session) Ask(ctx context.Context, question string) (Outcome, error) {
	return s.Queries.Submit(ctx, question)
}

// Snapshot is a point-in-time view for status displays.
type Snapshot struct {
	Job     *domain.Job
	Config  domain.Config
	Frozen  bool
	Polling bool
	Pending bool
	Entries int
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		Config:  s.Bundle.Get(),
		Frozen:  s.Bundle.Frozen(),
		Polling: s.Controller.Polling(),
		Pending: s.Queries.Pending(),
		Entries: s.Log.Len(),
	}
	if job, ok := s.Controller.Job(); ok {
		snap.Job = &job
		if job.State != domain.StateNotStarted {
			snap.Config = job.Config
		}
	}
	return snap
}

// String renders the snapshot as "key: value" lines.
func (s Snapshot) String() string {
	var b strings.Builder
	if s.Job == nil {
		b.WriteString("document: none\n")
	} else {
		fmt.Fprintf(&b, "document: %s (%s)\n", s.Job.Document.Name, s.Job.Document.Size)
		fmt.Fprintf(&b, "state: %s\n", s.Job.State)
	}
	fmt.Fprintf(&b, "chunking_method: %s\n", s.Config.ChunkingMethod)
	fmt.Fprintf(&b, "hybrid_search: %t\n", s.Config.HybridSearch)
	fmt.Fprintf(&b, "use_reranker: %t\n", s.Config.UseReranker)
	fmt.Fprintf(&b, "query_enhancement_mode: %s", s.Config.QueryEnhancementMode)
	if s.Job != nil {
		keys := make([]string, 0, len(s.Job.Unrecognized))
		for k := range s.Job.Unrecognized {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\nwarning: service reports %s=%q, which this client does not recognize", k, s.Job.Unrecognized[k])
		}
	}
	return b.String()
}

// Close stops background polling.
func (s *Session) Close() {
	s.Controller.Close()
}

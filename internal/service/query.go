package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ragchat/internal/conversation"
	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/remote"
)

const (
	msgNoAnswer       = "Failed to get answer"
	msgQueryTransport = "Error processing your question"
)

// JobSource exposes the current job to the query session.
type JobSource interface {
	Job() (domain.Job, bool)
}

// Outcome lists the entries one submission appended, in order.
type Outcome struct {
	Entries []domain.Entry
	// Err is the failure behind an error entry.
	Err error
	// Discarded is set when the log was cleared while the question was in
	// flight; the late result was dropped.
	Discarded bool
}

// Answer returns the answer entry, if any.
func (o Outcome) Answer() (domain.Entry, bool) {
	for _, e := range o.Entries {
		if e.Kind == domain.KindAnswer {
			return e, true
		}
	}
	return domain.Entry{}, false
}

// QuerySession accepts one question at a time and records the exchange in
// the conversation log.
type QuerySession struct {
	svc    domain.ProcessingService
	jobs   JobSource
	log    *conversation.Log
	logger domain.Logger

	mu      sync.Mutex
	pending bool
}

func NewQuerySession(svc domain.ProcessingService, jobs JobSource, log *conversation.Log, l domain.Logger) *QuerySession {
	if l == nil {
		l = logger.NewNop()
	}
	return &QuerySession{svc: svc, jobs: jobs, log: log, logger: l}
}

func (q *QuerySession) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Submit asks question against the ready document. Precondition failures
// return an error and touch neither the log nor the network. Every other
// outcome is recorded in the log and returned with a nil error.
func (q *QuerySession) Submit(ctx context.Context, question string) (Outcome, error) {
	if strings.TrimSpace(question) == "" {
		return Outcome{}, ErrEmptyQuestion
	}
	job, ok := q.jobs.Job()
	if !ok || job.State != domain.StateReady {
		return Outcome{}, ErrNotReady
	}
	mode := job.Config.QueryEnhancementMode

	q.mu.Lock()
	if q.pending {
		q.mu.Unlock()
		return Outcome{}, ErrQueryPending
	}
	q.pending = true
	q.mu.Unlock()
	defer q.clearPending()

	asked, gen := q.log.AppendTracked(domain.Entry{Kind: domain.KindQuestion, Content: question})
	out := Outcome{Entries: []domain.Entry{asked}}

	res, err := q.svc.Query(ctx, question, mode)
	if err != nil {
		out.Err = err
		q.logger.Warn("QuerySession", "Query failed", map[string]interface{}{"error": err.Error()})
		q.record(gen, &out, domain.Entry{Kind: domain.KindError, Content: failureMessage(err)})
		return out, nil
	}

	if res.EnhancedQuery != "" && res.EnhancedQuery != question {
		enhancedMode := mode
		if res.Mode.Rewrites() {
			enhancedMode = res.Mode
		}
		if !q.record(gen, &out, domain.Entry{Kind: domain.KindEnhancedQuery, Content: res.EnhancedQuery, Mode: enhancedMode}) {
			return out, nil
		}
	}
	q.record(gen, &out, domain.Entry{Kind: domain.KindAnswer, Content: res.Answer, Context: res.Context})
	q.logger.Debug("QuerySession", "Question answered", map[string]interface{}{
		"mode":        string(mode),
		"enhanced":    res.EnhancedQuery != "" && res.EnhancedQuery != question,
		"has_context": res.Context != "",
	})
	return out, nil
}

// record appends e unless the log was cleared since gen.
func (q *QuerySession) record(gen uint64, out *Outcome, e domain.Entry) bool {
	stored, ok := q.log.AppendIf(gen, e)
	if !ok {
		out.Discarded = true
		return false
	}
	out.Entries = append(out.Entries, stored)
	return true
}

// clearPending runs after every log mutation of a submission.
func (q *QuerySession) clearPending() {
	q.mu.Lock()
	q.pending = false
	q.mu.Unlock()
}

func failureMessage(err error) string {
	var se *remote.ServiceError
	if errors.As(err, &se) {
		if se.Message != "" {
			return se.Message
		}
		return msgNoAnswer
	}
	return msgQueryTransport
}

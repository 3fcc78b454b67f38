package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"ragchat/internal/document"
	"ragchat/internal/domain"
	"ragchat/internal/logger"
)

// JobEvent is delivered to the change hook after every job transition.
type JobEvent struct {
	Job *domain.Job // nil when no document is uploaded
	Err error
}

type ControllerOptions struct {
	PollInterval time.Duration
	MaxBackoff   time.Duration
	MaxWait      time.Duration // zero polls until a terminal status
	Logger       domain.Logger
	OnChange     func(JobEvent)
}

// Controller drives the session's single document through
// not_started -> processing -> ready. It is the only writer of job state.
type Controller struct {
	svc    domain.ProcessingService
	bundle *Bundle
	opts   ControllerOptions
	logger domain.Logger

	mu       sync.Mutex
	job      *domain.Job
	gen      uint64 // bumped whenever the job is replaced; poll loops exit on mismatch
	starting bool
	polling  bool
	timedOut bool
	closed   bool
	lastErr  error
	changed  chan struct{}
	done     chan struct{}
	onChange func(JobEvent)
}

func NewController(svc domain.ProcessingService, bundle *Bundle, opts ControllerOptions) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.MaxBackoff < opts.PollInterval {
		opts.MaxBackoff = opts.PollInterval
	}
	var l domain.Logger = logger.NewNop()
	if opts.Logger != nil {
		l = opts.Logger
	}
	return &Controller{
		svc:      svc,
		bundle:   bundle,
		opts:     opts,
		logger:   l,
		changed:  make(chan struct{}),
		done:     make(chan struct{}),
		onChange: opts.OnChange,
	}
}

// SetOnChange replaces the change hook. The hook runs outside the
// controller's lock and may call back into it.
func (c *Controller) SetOnChange(fn func(JobEvent)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Restore adopts whatever the service already holds. With no document the
// controller stays dormant; a processing job resumes polling without a new
// start request.
func (c *Controller) Restore(ctx context.Context) error {
	doc, err := c.svc.Document(ctx)
	if err != nil {
		c.logger.Error("Controller", "Failed to list files", map[string]interface{}{"error": err})
		return fmt.Errorf("restore: %w", err)
	}
	if doc == nil {
		c.logger.Info("Controller", "No document uploaded", nil)
		c.install(nil, nil)
		return nil
	}

	report, err := c.svc.Status(ctx)
	if err != nil {
		c.logger.Warn("Controller", "Failed to read processing status", map[string]interface{}{
			"document": doc.Name,
			"error":    err.Error(),
		})
		c.install(&domain.Job{Document: *doc, State: domain.StateNotStarted}, nil)
		return fmt.Errorf("restore: %w", err)
	}

	c.warnUnrecognized(doc.Name, report)

	c.mu.Lock()
	cfg := report.Overlay(c.bundle.Get())
	job := &domain.Job{Document: *doc, State: report.State}
	switch report.State {
	case domain.StateProcessing, domain.StateReady:
		job.Config = cfg
		job.Unrecognized = report.Unrecognized
		c.bundle.replace(cfg, true)
	default:
		job.State = domain.StateNotStarted
		c.bundle.replace(cfg, false)
	}
	gen := c.replaceJobLocked(job)
	if job.State == domain.StateProcessing {
		c.startPollingLocked(gen)
	}
	ev, fn := c.changedLocked(nil)
	c.mu.Unlock()

	c.logger.Info("Controller", "Session restored", map[string]interface{}{
		"document": doc.Name,
		"state":    string(job.State),
	})
	emit(fn, ev)
	return nil
}

// Start binds the current bundle and asks the service to process the
// document. A failed request puts the job back to not_started; it is never
// retried here.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.job == nil {
		c.mu.Unlock()
		return ErrNoDocument
	}
	if c.job.State != domain.StateNotStarted {
		c.mu.Unlock()
		return ErrJobActive
	}
	bound := c.bundle.freeze()
	c.job.State = domain.StateProcessing
	c.job.Config = bound
	c.job.StartedAt = time.Now()
	c.starting = true
	gen := c.gen
	name := c.job.Document.Name
	ev, fn := c.changedLocked(nil)
	c.mu.Unlock()
	emit(fn, ev)

	c.logger.Info("Controller", "Processing requested", map[string]interface{}{
		"document":               name,
		"chunking_method":        string(bound.ChunkingMethod),
		"hybrid_search":          bound.HybridSearch,
		"use_reranker":           bound.UseReranker,
		"query_enhancement_mode": string(bound.QueryEnhancementMode),
	})
	err := c.svc.Process(ctx, bound)

	c.mu.Lock()
	if gen != c.gen || c.closed {
		closed := c.closed
		c.mu.Unlock()
		switch {
		case err != nil:
			return err
		case closed:
			return ErrClosed
		}
		return ErrReplaced
	}
	c.starting = false
	if err != nil {
		c.job.State = domain.StateNotStarted
		c.job.Config = domain.Config{}
		c.job.StartedAt = time.Time{}
		c.bundle.unfreeze()
		ev, fn = c.changedLocked(err)
		c.mu.Unlock()
		c.logger.Error("Controller", "Processing request failed", map[string]interface{}{"document": name, "error": err})
		emit(fn, ev)
		return err
	}
	if !c.polling {
		c.startPollingLocked(gen)
	}
	c.mu.Unlock()
	return nil
}

// Resume re-arms polling for a processing job, typically after
// ErrPollTimeout.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case c.job == nil:
		return ErrNoDocument
	case c.job.State != domain.StateProcessing:
		return ErrNotProcessing
	case c.polling || c.starting:
		return nil
	}
	c.startPollingLocked(c.gen)
	c.logger.Info("Controller", "Polling resumed", map[string]interface{}{"document": c.job.Document.Name})
	return nil
}

// Upload checks a local PDF, uploads it and makes it the session's document
// with a fresh not_started job. Any previous job is abandoned.
func (c *Controller) Upload(ctx context.Context, path string) (domain.Document, error) {
	info, err := document.Inspect(path)
	if err != nil {
		return domain.Document{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return domain.Document{}, err
	}
	defer f.Close()

	if err := c.svc.Upload(ctx, info.Name, f); err != nil {
		c.logger.Error("Controller", "Upload failed", map[string]interface{}{"file": info.Name, "error": err})
		return domain.Document{}, err
	}

	doc := domain.Document{Name: info.Name, Size: document.HumanSize(info.Size)}
	listed, err := c.svc.Document(ctx)
	switch {
	case err != nil:
		c.logger.Warn("Controller", "Failed to list files after upload", map[string]interface{}{"error": err.Error()})
	case listed != nil:
		doc = *listed
	}

	c.install(&domain.Job{Document: doc, State: domain.StateNotStarted}, nil)
	c.logger.Info("Controller", "Document uploaded", map[string]interface{}{
		"document": doc.Name,
		"size":     doc.Size,
		"pages":    info.Pages,
	})
	return doc, nil
}

// Delete removes the session's document and leaves the controller dormant.
func (c *Controller) Delete(ctx context.Context) error {
	c.mu.Lock()
	if c.job == nil {
		c.mu.Unlock()
		return ErrNoDocument
	}
	name := c.job.Document.Name
	c.mu.Unlock()

	if err := c.svc.Delete(ctx, name); err != nil {
		c.logger.Error("Controller", "Delete failed", map[string]interface{}{"document": name, "error": err})
		return err
	}
	c.install(nil, nil)
	c.logger.Info("Controller", "Document deleted", map[string]interface{}{"document": name})
	return nil
}

// Job returns a copy of the current job.
func (c *Controller) Job() (domain.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil {
		return domain.Job{}, false
	}
	return *c.job, true
}

// BoundConfig is the configuration the current job was started with. It is
// only set while the job is processing or ready.
func (c *Controller) BoundConfig() (domain.Config, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil || c.job.State == domain.StateNotStarted {
		return domain.Config{}, false
	}
	return c.job.Config, true
}

// Polling reports whether a poll loop is scheduled for the current job.
func (c *Controller) Polling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.polling
}

// Wait blocks until the job leaves processing. A job that went back to
// not_started returns the error that caused it.
func (c *Controller) Wait(ctx context.Context) (domain.JobState, error) {
	for {
		c.mu.Lock()
		if c.job == nil {
			c.mu.Unlock()
			return "", ErrNoDocument
		}
		state := c.job.State
		switch {
		case c.closed:
			c.mu.Unlock()
			return state, ErrClosed
		case state != domain.StateProcessing:
			err := c.lastErr
			c.mu.Unlock()
			return state, err
		case c.timedOut:
			c.mu.Unlock()
			return state, ErrPollTimeout
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close stops scheduling polls. A status request already in flight completes
// and its result is dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.polling = false
	close(c.done)
	close(c.changed)
	c.changed = make(chan struct{})
}

// install replaces the job and notifies.
func (c *Controller) install(job *domain.Job, err error) {
	c.mu.Lock()
	c.replaceJobLocked(job)
	c.bundle.unfreeze()
	ev, fn := c.changedLocked(err)
	c.mu.Unlock()
	emit(fn, ev)
}

func (c *Controller) replaceJobLocked(job *domain.Job) uint64 {
	c.job = job
	c.gen++
	c.starting = false
	c.polling = false
	c.timedOut = false
	return c.gen
}

func (c *Controller) startPollingLocked(gen uint64) {
	c.polling = true
	c.timedOut = false
	go c.poll(gen)
}

func (c *Controller) interested(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen && !c.closed
}

// changedLocked wakes Wait callers and builds the event for the hook.
func (c *Controller) changedLocked(err error) (JobEvent, func(JobEvent)) {
	c.lastErr = err
	close(c.changed)
	c.changed = make(chan struct{})
	ev := JobEvent{Err: err}
	if c.job != nil {
		job := *c.job
		ev.Job = &job
	}
	return ev, c.onChange
}

// warnUnrecognized logs server config values that could not be adopted; the
// job then reports the client's value for those fields.
func (c *Controller) warnUnrecognized(name string, report domain.StatusReport) {
	if len(report.Unrecognized) == 0 {
		return
	}
	details := map[string]interface{}{"document": name}
	for k, v := range report.Unrecognized {
		details[k] = v
	}
	c.logger.Warn("Controller", "Service reported unrecognized configuration", details)
}

func emit(fn func(JobEvent), ev JobEvent) {
	if fn != nil {
		fn(ev)
	}
}

package service

import (
	"context"
	"fmt"
	"time"

	"ragchat/internal/domain"
)

// poll reads the processing status until the job leaves processing, the
// controller loses interest or MaxWait runs out. Only one request is in
// flight at a time; the next one is scheduled after the previous returns.
func (c *Controller) poll(gen uint64) {
	var deadline time.Time
	if c.opts.MaxWait > 0 {
		deadline = time.Now().Add(c.opts.MaxWait)
	}
	failures := 0
	var delay time.Duration // first poll goes out immediately

	for {
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-c.done:
				timer.Stop()
				return
			}
		}
		if !c.interested(gen) {
			return
		}

		report, err := c.svc.Status(context.Background())
		if err != nil {
			// transient: never resets the job
			failures++
			delay = pollBackoff(c.opts.PollInterval, c.opts.MaxBackoff, failures)
			c.logger.Warn("Poller", "Status poll failed", map[string]interface{}{
				"error":    err.Error(),
				"attempt":  failures,
				"retry_in": delay.String(),
			})
		} else {
			failures = 0
			delay = c.opts.PollInterval
			if !c.applyStatus(gen, report) {
				return
			}
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			c.giveUp(gen)
			return
		}
	}
}

// applyStatus records a successful poll and reports whether polling should
// continue.
func (c *Controller) applyStatus(gen uint64, report domain.StatusReport) bool {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return false
	}
	name := c.job.Document.Name

	switch report.State {
	case domain.StateProcessing:
		c.mu.Unlock()
		c.logger.Debug("Poller", "Still processing", map[string]interface{}{"document": name})
		return true
	case domain.StateReady:
		c.job.State = domain.StateReady
		c.polling = false
		ev, fn := c.changedLocked(nil)
		c.mu.Unlock()
		c.logger.Info("Poller", "Document ready", map[string]interface{}{
			"document": name,
			"elapsed":  time.Since(ev.Job.StartedAt).Round(time.Millisecond).String(),
		})
		emit(fn, ev)
		return false
	default:
		c.job.State = domain.StateNotStarted
		c.job.Config = domain.Config{}
		c.job.StartedAt = time.Time{}
		c.polling = false
		c.bundle.unfreeze()
		err := statusError(report)
		ev, fn := c.changedLocked(err)
		c.mu.Unlock()
		c.logger.Warn("Poller", "Processing stopped", map[string]interface{}{
			"document": name,
			"status":   string(report.State),
			"message":  report.Message,
		})
		emit(fn, ev)
		return false
	}
}

func (c *Controller) giveUp(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		return
	}
	c.polling = false
	c.timedOut = true
	ev, fn := c.changedLocked(ErrPollTimeout)
	c.mu.Unlock()
	c.logger.Warn("Poller", "Gave up waiting for processing", map[string]interface{}{"max_wait": c.opts.MaxWait.String()})
	emit(fn, ev)
}

func statusError(report domain.StatusReport) error {
	if report.Message != "" {
		return fmt.Errorf("processing stopped (status %q): %s", report.State, report.Message)
	}
	return fmt.Errorf("processing stopped (status %q)", report.State)
}

// pollBackoff keeps the regular interval after the first failure and doubles
// it for each further consecutive one, capped at ceiling.
func pollBackoff(interval, ceiling time.Duration, failures int) time.Duration {
	shift := failures - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 16 {
		shift = 16
	}
	d := interval << shift
	if d > ceiling || d <= 0 {
		d = ceiling
	}
	return d
}

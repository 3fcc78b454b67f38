package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

var errNetwork = errors.New("connection refused")

type statusResult struct {
	report domain.StatusReport
	err    error
}

func status(s domain.JobState) statusResult {
	return statusResult{report: domain.StatusReport{State: s}}
}

// fakeService is an in-memory ProcessingService. Status results are consumed
// in order and the last one repeats.
type fakeService struct {
	mu sync.Mutex

	doc    *domain.Document
	docErr error

	statuses    []statusResult
	statusCalls int

	processErr  error
	processed   []domain.Config
	processGate chan struct{}
	// processing receives once Process is blocked on processGate.
	processing chan struct{}

	queryResult domain.QueryResult
	queryErr    error
	queries     []string
	modes       []domain.EnhancementMode
	queryGate   chan struct{}

	uploadErr error
	uploads   []string
	deletes   []string
}

func (f *fakeService) Document(context.Context) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docErr != nil {
		return nil, f.docErr
	}
	if f.doc == nil {
		return nil, nil
	}
	d := *f.doc
	return &d, nil
}

func (f *fakeService) Status(context.Context) (domain.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statuses) == 0 {
		return domain.StatusReport{}, errNetwork
	}
	r := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return r.report, r.err
}

func (f *fakeService) Process(ctx context.Context, cfg domain.Config) error {
	f.mu.Lock()
	f.processed = append(f.processed, cfg)
	gate, entered, err := f.processGate, f.processing, f.processErr
	f.mu.Unlock()
	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeService) Query(ctx context.Context, question string, mode domain.EnhancementMode) (domain.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, question)
	f.modes = append(f.modes, mode)
	gate := f.queryGate
	res, err := f.queryResult, f.queryErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.QueryResult{}, ctx.Err()
		}
	}
	return res, err
}

func (f *fakeService) Upload(_ context.Context, name string, r io.Reader) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, name)
	f.doc = &domain.Document{Name: name, Size: "1 KB"}
	return nil
}

func (f *fakeService) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, name)
	f.doc = nil
	return nil
}

func (f *fakeService) setStatuses(rs ...statusResult) {
	f.mu.Lock()
	f.statuses = rs
	f.mu.Unlock()
}

func (f *fakeService) calls() (status, process, query int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, len(f.processed), len(f.queries)
}

func fastOptions() SessionOptions {
	return SessionOptions{
		Config:       domain.DefaultConfig(),
		PollInterval: 5 * time.Millisecond,
		MaxBackoff:   20 * time.Millisecond,
		MaxWait:      5 * time.Second,
	}
}

func newTestSession(t *testing.T, svc domain.ProcessingService, opts SessionOptions) *Session {
	t.Helper()
	s := NewSession(svc, opts)
	t.Cleanup(s.Close)
	return s
}

// readySession restores a session whose document is already processed.
func readySession(t *testing.T, f *fakeService, mode domain.EnhancementMode) *Session {
	t.Helper()
	f.doc = &domain.Document{Name: "paper.pdf", Size: "1.2 MB"}
	f.setStatuses(statusResult{report: domain.StatusReport{State: domain.StateReady, QueryEnhancementMode: &mode}})
	s := newTestSession(t, f, fastOptions())
	require.NoError(t, s.Restore(context.Background()))
	return s
}

func waitState(t *testing.T, c *Controller) (domain.JobState, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return c.Wait(ctx)
}

// writePDF writes a one-page PDF with a valid cross-reference table.
func writePDF(t *testing.T, name string) string {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

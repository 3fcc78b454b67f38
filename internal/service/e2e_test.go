package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/remote"
)

// fakeServer speaks the service's HTTP contract and counts requests per path.
type fakeServer struct {
	mu       sync.Mutex
	files    []map[string]string
	statuses []string // consumed in order, last repeats
	bound    map[string]any
	query    map[string]any
	counts   map[string]int
	lastBody map[string]any
}

func newFakeServer(t *testing.T, fs *fakeServer) *remote.Client {
	t.Helper()
	fs.counts = map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		fs.counts[r.Method+" "+r.URL.Path]++
		w.Header().Set("Content-Type", "application/json")

		switch r.Method + " " + r.URL.Path {
		case "GET /files":
			files := fs.files
			if files == nil {
				files = []map[string]string{}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"files": files})
		case "GET /rag-status":
			st := "not_started"
			if len(fs.statuses) > 0 {
				st = fs.statuses[0]
				if len(fs.statuses) > 1 {
					fs.statuses = fs.statuses[1:]
				}
			}
			body := map[string]any{"status": st}
			for k, v := range fs.bound {
				body[k] = v
			}
			_ = json.NewEncoder(w).Encode(body)
		case "POST /process-document":
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			fs.bound = req
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
		case "POST /query":
			var req map[string]any
			_ = json.NewDecoder(r.Body).Decode(&req)
			fs.lastBody = req
			_ = json.NewEncoder(w).Encode(fs.query)
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "not found"})
		}
	}))
	t.Cleanup(srv.Close)
	return remote.NewClient(remote.Config{BaseURL: srv.URL, Token: "test-token"})
}

func (fs *fakeServer) count(key string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.counts[key]
}

func TestScenarioNoDocumentStaysDormant(t *testing.T) {
	fs := &fakeServer{}
	s := newTestSession(t, newFakeServer(t, fs), fastOptions())

	require.NoError(t, s.Restore(context.Background()))

	_, ok := s.Controller.Job()
	assert.False(t, ok)
	assert.Equal(t, 1, fs.count("GET /files"))
	assert.Zero(t, fs.count("GET /rag-status"))

	_, err := s.Ask(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Zero(t, fs.count("POST /query"))
}

func TestScenarioStartThenThreePollsThenReady(t *testing.T) {
	fs := &fakeServer{
		files:    []map[string]string{{"name": "paper.pdf", "size": "1.2 MB"}},
		statuses: []string{"not_started"},
	}
	s := newTestSession(t, newFakeServer(t, fs), fastOptions())
	require.NoError(t, s.Restore(context.Background()))

	semantic := domain.ChunkingSemantic
	hybrid := true
	reranker := false
	expansion := domain.EnhancementExpansion
	_, err := s.Bundle.Set(domain.ConfigPatch{
		ChunkingMethod:       &semantic,
		HybridSearch:         &hybrid,
		UseReranker:          &reranker,
		QueryEnhancementMode: &expansion,
	})
	require.NoError(t, err)

	fs.mu.Lock()
	fs.statuses = []string{"processing", "processing", "processing", "ready"}
	fs.mu.Unlock()
	pollsBefore := fs.count("GET /rag-status")

	require.NoError(t, s.Controller.Start(context.Background()))
	state, err := waitState(t, s.Controller)
	require.NoError(t, err)
	assert.Equal(t, domain.StateReady, state)

	assert.Equal(t, 1, fs.count("POST /process-document"))
	assert.Equal(t, 4, fs.count("GET /rag-status")-pollsBefore)

	want := domain.Config{
		ChunkingMethod:       domain.ChunkingSemantic,
		HybridSearch:         true,
		UseReranker:          false,
		QueryEnhancementMode: domain.EnhancementExpansion,
	}
	bound, ok := s.Controller.BoundConfig()
	require.True(t, ok)
	assert.Equal(t, want, bound)

	fs.mu.Lock()
	assert.Equal(t, map[string]any{
		"chunking_method":        "semantic",
		"hybrid_search":          true,
		"use_reranker":           false,
		"query_enhancement_mode": "expansion",
	}, fs.bound)
	fs.mu.Unlock()
}

func TestScenarioUnchangedEnhancedQuery(t *testing.T) {
	fs := &fakeServer{
		files:    []map[string]string{{"name": "paper.pdf", "size": "1.2 MB"}},
		statuses: []string{"ready"},
		query: map[string]any{
			"success":        true,
			"enhanced_query": "What is the main topic?",
			"answer":         "The paper studies retrieval.",
		},
	}
	s := newTestSession(t, newFakeServer(t, fs), fastOptions())
	require.NoError(t, s.Restore(context.Background()))

	out, err := s.Ask(context.Background(), "What is the main topic?")
	require.NoError(t, err)

	require.Len(t, out.Entries, 2)
	assert.Equal(t, domain.KindQuestion, out.Entries[0].Kind)
	assert.Equal(t, domain.KindAnswer, out.Entries[1].Kind)
	assert.Equal(t, "The paper studies retrieval.", out.Entries[1].Content)
	assert.Equal(t, 1, fs.count("POST /query"))

	fs.mu.Lock()
	assert.Equal(t, map[string]any{"question": "What is the main topic?", "query_enhancement_mode": "normal"}, fs.lastBody)
	fs.mu.Unlock()
}

func TestScenarioTransportFailureThenResubmit(t *testing.T) {
	fs := &fakeServer{
		files:    []map[string]string{{"name": "paper.pdf", "size": "1.2 MB"}},
		statuses: []string{"ready"},
	}
	client := newFakeServer(t, fs)
	f := &flakyQuery{ProcessingService: client, failures: 1}
	s := newTestSession(t, f, fastOptions())
	require.NoError(t, s.Restore(context.Background()))

	out, err := s.Ask(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, domain.KindError, out.Entries[1].Kind)
	assert.Equal(t, "Error processing your question", out.Entries[1].Content)
	assert.False(t, s.Queries.Pending())

	fs.mu.Lock()
	fs.query = map[string]any{"success": true, "answer": "ok"}
	fs.mu.Unlock()
	out, err = s.Ask(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []domain.EntryKind{domain.KindQuestion, domain.KindAnswer}, kinds(out.Entries))
	assert.Equal(t, 4, s.Log.Len())
}

// flakyQuery fails the first n queries with a transport error.
type flakyQuery struct {
	domain.ProcessingService
	mu       sync.Mutex
	failures int
}

func (f *flakyQuery) Query(ctx context.Context, question string, mode domain.EnhancementMode) (domain.QueryResult, error) {
	f.mu.Lock()
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return domain.QueryResult{}, errNetwork
	}
	return f.ProcessingService.Query(ctx, question, mode)
}

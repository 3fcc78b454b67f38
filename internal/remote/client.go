package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ragchat/internal/domain"
)

// ErrFileTooLarge replaces the service's non-JSON 413 response.
var ErrFileTooLarge = errors.New("file is too large: max size is 50MB")

// ServiceError is an explicit failure reported by the service, as opposed to
// a transport or decoding failure.
type ServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed (HTTP %d)", e.Op, e.Status)
	}
	return e.Message
}

// IsServiceError reports whether err carries an explicit service failure.
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}

// Config configures the service client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client talks to the processing-and-query service over HTTP/JSON.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ domain.ProcessingService = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

type fileInfo struct {
	Name string `json:"name"`
	Size string `json:"size"`
}

type filesResponse struct {
	Files []fileInfo `json:"files"`
	Error string     `json:"error,omitempty"`
}

type statusResponse struct {
	Status               string  `json:"status"`
	ChunkingMethod       *string `json:"chunking_method,omitempty"`
	HybridSearch         *bool   `json:"hybrid_search,omitempty"`
	UseReranker          *bool   `json:"use_reranker,omitempty"`
	QueryEnhancementMode *string `json:"query_enhancement_mode,omitempty"`
	Message              string  `json:"message,omitempty"`
	Error                string  `json:"error,omitempty"`
}

type processRequest struct {
	ChunkingMethod       string `json:"chunking_method"`
	HybridSearch         bool   `json:"hybrid_search"`
	UseReranker          bool   `json:"use_reranker"`
	QueryEnhancementMode string `json:"query_enhancement_mode"`
}

type queryRequest struct {
	Question             string `json:"question"`
	QueryEnhancementMode string `json:"query_enhancement_mode"`
}

type queryResponse struct {
	Success              bool   `json:"success"`
	Answer               string `json:"answer,omitempty"`
	EnhancedQuery        string `json:"enhanced_query,omitempty"`
	QueryEnhancementMode string `json:"query_enhancement_mode,omitempty"`
	Context              string `json:"context,omitempty"`
	Error                string `json:"error,omitempty"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Document returns the first listed file; the service keeps at most one.
func (c *Client) Document(ctx context.Context) (*domain.Document, error) {
	var out filesResponse
	status, err := c.getJSON(ctx, "/files", &out)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, &ServiceError{Op: "list files", Status: status, Message: out.Error}
	}
	if len(out.Files) == 0 {
		return nil, nil
	}
	return &domain.Document{Name: out.Files[0].Name, Size: out.Files[0].Size}, nil
}

func (c *Client) Status(ctx context.Context) (domain.StatusReport, error) {
	var out statusResponse
	status, err := c.getJSON(ctx, "/rag-status", &out)
	if err != nil {
		return domain.StatusReport{}, err
	}
	if status >= 300 {
		return domain.StatusReport{}, &ServiceError{Op: "status", Status: status, Message: out.Error}
	}
	if out.Status == "" {
		return domain.StatusReport{}, fmt.Errorf("status: response has no status field")
	}
	report := domain.StatusReport{
		State:        domain.ParseJobState(out.Status),
		HybridSearch: out.HybridSearch,
		UseReranker:  out.UseReranker,
		Message:      out.Message,
	}
	if out.ChunkingMethod != nil {
		if m := domain.ChunkingMethod(*out.ChunkingMethod); m.Valid() {
			report.ChunkingMethod = &m
		} else {
			report.Unrecognized = unrecognized(report.Unrecognized, "chunking_method", *out.ChunkingMethod)
		}
	}
	if out.QueryEnhancementMode != nil {
		if m := domain.EnhancementMode(*out.QueryEnhancementMode); m.Valid() {
			report.QueryEnhancementMode = &m
		} else {
			report.Unrecognized = unrecognized(report.Unrecognized, "query_enhancement_mode", *out.QueryEnhancementMode)
		}
	}
	return report, nil
}

func unrecognized(m map[string]string, key, value string) map[string]string {
	if m == nil {
		m = make(map[string]string)
	}
	m[key] = value
	return m
}

func (c *Client) Process(ctx context.Context, cfg domain.Config) error {
	body := processRequest{
		ChunkingMethod:       string(cfg.ChunkingMethod),
		HybridSearch:         cfg.HybridSearch,
		UseReranker:          cfg.UseReranker,
		QueryEnhancementMode: string(cfg.QueryEnhancementMode),
	}
	var out ackResponse
	status, err := c.postJSON(ctx, "/process-document", body, &out)
	if err != nil {
		return err
	}
	if !out.Success {
		return &ServiceError{Op: "process document", Status: status, Message: out.Error}
	}
	return nil
}

func (c *Client) Query(ctx context.Context, question string, mode domain.EnhancementMode) (domain.QueryResult, error) {
	body := queryRequest{Question: question, QueryEnhancementMode: string(mode)}
	var out queryResponse
	status, err := c.postJSON(ctx, "/query", body, &out)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if !out.Success {
		return domain.QueryResult{}, &ServiceError{Op: "query", Status: status, Message: out.Error}
	}
	return domain.QueryResult{
		Answer:        out.Answer,
		EnhancedQuery: out.EnhancedQuery,
		Mode:          domain.EnhancementMode(out.QueryEnhancementMode),
		Context:       out.Context,
	}, nil
}

// Upload sends r as the single PDF in the multipart field "files".
func (c *Client) Upload(ctx context.Context, name string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", name)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("upload: reading %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if !isJSON(resp) {
		if resp.StatusCode == http.StatusRequestEntityTooLarge {
			return ErrFileTooLarge
		}
		return fmt.Errorf("upload failed with status: %d", resp.StatusCode)
	}
	var out ackResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("upload: decoding response: %w", err)
	}
	if resp.StatusCode >= 300 || !out.Success {
		return &ServiceError{Op: "upload", Status: resp.StatusCode, Message: out.Error}
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, name string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/files/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}
	var out ackResponse
	status, err := c.do(req, &out)
	if err != nil {
		return err
	}
	if !out.Success {
		return &ServiceError{Op: "delete", Status: status, Message: out.Error}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes the JSON body into out whatever the status code;
// callers decide success from the payload.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("%s %s: decoding response (HTTP %d): %w", req.Method, req.URL.Path, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

func isJSON(resp *http.Response) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

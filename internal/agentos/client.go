// Package agentos is a client for the AgentOS agent-state HTTP API, which
// reports remote agent sessions, a task queue and dashboard aggregates.
package agentos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/asheshgoplani/agent-watch/internal/logging"
)

var apiLog = logging.ForComponent(logging.CompRemote)

// DefaultURL is used when no base URL is configured.
const DefaultURL = "http://localhost:3100"

const (
	defaultTimeout = 2 * time.Second
	maxBodyBytes   = 8 << 20
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client talks to one AgentOS instance. It is safe for concurrent use.
type Client struct {
	baseURL    string
	http       *http.Client
	readLimit  *rate.Limiter
	writeLimit *rate.Limiter
	now        func() time.Time
	sf         singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRateLimits sets request pacing for reads and writes.
func WithRateLimits(read, write rate.Limit) Option {
	return func(c *Client) {
		c.readLimit = rate.NewLimiter(read, 10)
		c.writeLimit = rate.NewLimiter(write, 1)
	}
}

// WithNow replaces the clock used for sprint day counts.
func WithNow(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for baseURL, or DefaultURL when empty.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: defaultTimeout},
		readLimit:  rate.NewLimiter(rate.Limit(20), 10),
		writeLimit: rate.NewLimiter(rate.Every(time.Second), 1),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Panes fetches session records from /api/status.
func (c *Client) Panes(ctx context.Context) ([]Pane, error) {
	var resp statusResponse
	if err := c.get(ctx, "/api/status", &resp); err != nil {
		return nil, err
	}
	return resp.Panes, nil
}

// Queue fetches the task queue.
func (c *Client) Queue(ctx context.Context) ([]QueueTask, error) {
	var resp queueResponse
	if err := c.get(ctx, "/api/queue", &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// Digest fetches the 24h usage digest.
func (c *Client) Digest(ctx context.Context) (*Digest, error) {
	var d Digest
	if err := c.get(ctx, "/api/analytics/digest", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Alerts fetches active alerts.
func (c *Client) Alerts(ctx context.Context) (*Alerts, error) {
	var a Alerts
	if err := c.get(ctx, "/api/analytics/alerts", &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Dashboard fetches the aggregate payload and derives the sprint summary.
// Concurrent callers share one request.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	v, err, shared := c.sf.Do("dashboard", func() (any, error) {
		var d Dashboard
		if err := c.get(ctx, "/api/dashboard", &d); err != nil {
			return nil, err
		}
		d.Sprint = SummarizeSprint(d.Sprints, c.now())
		return &d, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		apiLog.Debug("dashboard_fetch_shared")
	}
	return v.(*Dashboard), nil
}

// PipelineRequests lists requests submitted to the remote pipeline.
func (c *Client) PipelineRequests(ctx context.Context) ([]PipelineRequest, error) {
	var resp pipelineResponse
	if err := c.get(ctx, "/api/factory/requests", &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// SubmitRequest sends a free-text request to the remote pipeline.
func (c *Client) SubmitRequest(ctx context.Context, text string) (*SubmitResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("request text is empty")
	}
	if err := c.writeLimit.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"request": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	var res SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/factory/requests", bytes.NewReader(body), &res); err != nil {
		return nil, err
	}
	apiLog.Info("pipeline_request_submitted", slog.String("id", res.ID))
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	if err := c.readLimit.Wait(ctx); err != nil {
		return err
	}
	return c.do(ctx, http.MethodGet, path, nil, v)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: snippet(data)}
	}
	if err := decodeLenient(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

package rci

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is the RCI SDK entry point.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// New creates an RCI client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  cfg.apiKey,
		http:    hc,
		logger:  cfg.logger,
	}
}

// Search runs a semantic component query.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	var resp SearchResponse
	err := c.do(ctx, http.MethodPost, "/rag/search", req, &resp)
	return resp, err
}

// Sync re-indexes a component source tree.
func (c *Client) Sync(ctx context.Context, req SyncRequest) (SyncResponse, error) {
	var resp SyncResponse
	err := c.do(ctx, http.MethodPost, "/rag/sync", req, &resp)
	return resp, err
}

// Status reports index availability, statistics and configuration.
func (c *Client) Status(ctx context.Context) (StatusReport, error) {
	var resp StatusReport
	err := c.do(ctx, http.MethodGet, "/rag/status", nil, &resp)
	return resp, err
}

// ClearCache invalidates the search cache.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/rag/cache/clear", nil, nil)
}

// Health checks the service and its dependencies. The report is returned
// even when the service answers 503 (degraded).
func (c *Client) Health(ctx context.Context) (HealthReport, error) {
	var report HealthReport

	httpReq, err := c.newRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return report, err
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return report, fmt.Errorf("rci: health: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if err := json.NewDecoder(res.Body).Decode(&report); err != nil {
		return report, fmt.Errorf("rci: decode health response: %w", err)
	}
	return report, nil
}

// envelope mirrors the server response body.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (err error) {
	start := time.Now()
	defer func() { c.observe(method+" "+path, start, err) }()

	httpReq, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return err
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("rci: %s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("rci: decode response (%s): %w", res.Status, err)
	}

	if !env.Success {
		if sentinel, ok := codeToErr[env.Code]; ok {
			return fmt.Errorf("rci: %s: %w", env.Error, sentinel)
		}
		return fmt.Errorf("rci: %s (status %d, code %s)", env.Error, res.StatusCode, env.Code)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("rci: decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("rci: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("rci: build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req, nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	if c.logger == nil {
		return
	}
	dur := time.Since(start)
	if err != nil {
		c.logger.Warn("operation failed", "op", op, "duration", dur, "error", err)
		return
	}
	c.logger.Debug("operation completed", "op", op, "duration", dur)
}

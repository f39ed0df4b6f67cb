// Package api is the typed HTTP client for the ClinSight backend: SQL
// drafting, acknowledged execution, narrative answers, visualization
// plans, and the per-user session snapshot store. Bodies are JSON;
// every call carries a per-operation deadline and timeouts surface as
// ErrTimeout rather than being retried.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 8 << 20 // 8 MiB

// Timeouts holds the per-stage deadlines. Execution gets the longest
// budget because Oracle runs can be slow; the narrative answer is a
// secondary stage and is cut short aggressively.
type Timeouts struct {
	Draft     time.Duration `koanf:"draft"`
	Execute   time.Duration `koanf:"execute"`
	Answer    time.Duration `koanf:"answer"`
	Visualize time.Duration `koanf:"visualize"`
}

// DefaultTimeouts returns the stage deadlines used when config leaves
// them unset.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Draft:     90 * time.Second,
		Execute:   130 * time.Second,
		Answer:    35 * time.Second,
		Visualize: 120 * time.Second,
	}
}

// Config holds client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. "https://clinsight.example.com/api".
	BaseURL string
	// Token is the bearer token attached to every request (optional).
	Token string
	// UserID routes the server-held session snapshot store.
	UserID string
	// Timeouts are the per-stage deadlines (zero fields get defaults).
	Timeouts Timeouts
	// HTTPClient is the underlying transport (optional).
	HTTPClient *http.Client
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Client talks to the ClinSight backend.
type Client struct {
	baseURL  string
	token    string
	userID   string
	timeouts Timeouts
	hc       *http.Client
	logger   *slog.Logger
}

// New creates a backend client.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("api: invalid base URL: %w", err)
	}
	to := cfg.Timeouts
	def := DefaultTimeouts()
	if to.Draft == 0 {
		to.Draft = def.Draft
	}
	if to.Execute == 0 {
		to.Execute = def.Execute
	}
	if to.Answer == 0 {
		to.Answer = def.Answer
	}
	if to.Visualize == 0 {
		to.Visualize = def.Visualize
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:  base,
		token:    cfg.Token,
		userID:   cfg.UserID,
		timeouts: to,
		hc:       hc,
		logger:   logger,
	}, nil
}

// Timeouts exposes the effective stage deadlines.
func (c *Client) Timeouts() Timeouts { return c.timeouts }

// doJSON performs one JSON request with the given deadline and returns
// the raw response body. Non-2xx responses become classified errors;
// deadline hits become ErrTimeout.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		err = wrapTransportError(err)
		c.logger.Debug("backend request failed", "path", path, "elapsed", time.Since(start), "err", err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, wrapTransportError(err)
	}
	c.logger.Debug("backend request", "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPError(resp.StatusCode, extractDetail(data))
	}
	return data, nil
}

// extractDetail prefers a `detail` JSON field; otherwise the trimmed
// raw body.
func extractDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(body))
}

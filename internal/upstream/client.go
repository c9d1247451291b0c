package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds each call to the remote API
const DefaultTimeout = 15 * time.Second

const maxResponseBytes = 1 << 20

// StatusError is returned for non-2xx responses
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Unauthorized reports whether the API rejected the credential
func (e *StatusError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// Client sends single JSON request/response exchanges to the remote API.
// It never retries.
type Client struct {
	resolver Resolver
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a client. A zero timeout selects DefaultTimeout.
func NewClient(resolver Resolver, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		resolver: resolver,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Resolver returns the resolver requests are routed through
func (c *Client) Resolver() Resolver {
	return c.resolver
}

// PostJSON posts payload to path and decodes a 2xx body into out. token, when
// set, is sent as a bearer credential.
func (c *Client) PostJSON(ctx context.Context, path, token string, payload, out any) (http.Header, error) {
	base, err := c.resolver.BaseURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve api: %w", err)
	}
	endpoint := base.JoinPath(path)

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("API request failed",
			"path", path,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("API responded",
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: raw}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}

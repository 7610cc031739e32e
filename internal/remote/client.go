// Package remote is the HTTP client for the budget remote store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/theirongolddev/budgetbox/internal/model"
)

const (
	// DefaultBaseURL is where the reference server listens by default.
	DefaultBaseURL = "http://localhost:5000/api"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	userAgent      = "budgetbox/1.0"
)

// Client talks to the remote store over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a client for baseURL. An empty baseURL uses
// DefaultBaseURL; a non-positive timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// BaseURL returns the API root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticate exchanges credentials for a session.
func (c *Client) Authenticate(ctx context.Context, email, password string) (model.AuthSession, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", LoginRequest{Email: email, Password: password}, &resp); err != nil {
		return model.AuthSession{}, err
	}
	if resp.Token == "" || resp.User == nil || resp.User.ID == "" {
		return model.AuthSession{}, fmt.Errorf("%w: login response missing token or user", model.ErrRemote)
	}
	return model.AuthSession{User: resp.User, Token: resp.Token}, nil
}

// GetBudget fetches the owner's budget for month. The server creates a
// zeroed record when none exists.
func (c *Client) GetBudget(ctx context.Context, token, month string) (model.Budget, error) {
	path := "/budget/latest"
	if month != "" {
		path += "?month=" + url.QueryEscape(month)
	}
	var b model.Budget
	if err := c.do(ctx, http.MethodGet, path, token, nil, &b); err != nil {
		return model.Budget{}, err
	}
	if err := b.Validate(); err != nil {
		return model.Budget{}, fmt.Errorf("%w: budget: %v", model.ErrRemote, err)
	}
	b.SyncStatus = model.StatusSynced
	return b, nil
}

// UpsertBudget overwrites the owner's record for b.Month with b.
func (c *Client) UpsertBudget(ctx context.Context, token string, b model.Budget) (model.UpsertResult, error) {
	var res model.UpsertResult
	if err := c.do(ctx, http.MethodPost, "/budget/sync", token, b, &res); err != nil {
		return model.UpsertResult{}, err
	}
	return res, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &h); err != nil {
		return Health{}, err
	}
	if h.Status != "OK" {
		return h, fmt.Errorf("%w: health status %q", model.ErrRemote, h.Status)
	}
	return h, nil
}

// do sends a JSON request and decodes a JSON response into out. Transport
// failures map to model.ErrConnectivity, 401/403 to model.ErrAuthentication
// and every other failure to model.ErrRemote.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encoding request: %v", model.ErrRemote, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", model.ErrRemote, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", model.ErrConnectivity, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", model.ErrConnectivity, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", model.ErrAuthentication, message(data, resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: %s", model.ErrRemote, message(data, resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: parsing %s response: %v", model.ErrRemote, path, err)
	}
	return nil
}

func message(data []byte, status int) string {
	var e ErrorResponse
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		return fmt.Sprintf("%s (status %d)", e.Message, status)
	}
	return fmt.Sprintf("unexpected status %d", status)
}

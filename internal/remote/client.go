package remote

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

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/bebetter/internal/api"
)

// Defaults for NewClient.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
)

// Client calls the remote ledger over HTTP.
//
// Idempotent calls (GET /user, and POST /user/modify carrying a request
// id) retry transient failures with exponential backoff. Register, login
// and logout never retry.
type Client struct {
	base       string
	http       *http.Client
	maxRetries uint
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every single HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithMaxRetries sets how many attempts a retryable call makes in total.
// Values below 1 mean a single attempt.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.maxRetries = uint(n)
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBackOff replaces the retry schedule. Tests use a zero backoff.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = fn }
}

// NewClient creates a client for the server at base (e.g. http://localhost:3000).
func NewClient(base string, opts ...Option) *Client {
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		http:       &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (string, error) {
	var resp api.RegisterResponse
	if err := c.do(ctx, http.MethodPost, api.PathRegister, "", req, &resp); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	return resp.ID, nil
}

// Login returns a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp api.LoginResponse
	req := api.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, api.PathLogin, "", req, &resp); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("login: server returned no token")
	}
	return resp.Token, nil
}

// Logout revokes token.
func (c *Client) Logout(ctx context.Context, token string) error {
	var resp api.OKResponse
	if err := c.do(ctx, http.MethodPost, api.PathLogout, token, struct{}{}, &resp); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// User fetches the caller's record.
func (c *Client) User(ctx context.Context, token string) (api.User, error) {
	var resp api.UserResponse
	err := c.retry(ctx, func() error {
		return c.do(ctx, http.MethodGet, api.PathUser, token, nil, &resp)
	})
	if err != nil {
		return api.User{}, fmt.Errorf("get user: %w", err)
	}
	return resp.User, nil
}

// Modify applies deltas and returns the resulting absolute totals.
// Without a RequestID the call is attempted exactly once.
func (c *Client) Modify(ctx context.Context, token string, req api.ModifyRequest) (api.User, error) {
	var resp api.ModifyResponse
	call := func() error {
		return c.do(ctx, http.MethodPost, api.PathModify, token, req, &resp)
	}

	var err error
	if req.RequestID != "" {
		err = c.retry(ctx, call)
	} else {
		err = call()
	}
	if err != nil {
		return api.User{}, fmt.Errorf("modify user: %w", err)
	}
	return resp.User, nil
}

// retry runs op until it succeeds, fails permanently, or attempts run out.
func (c *Client) retry(ctx context.Context, op func() error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			return struct{}{}, backoff.Permanent(err)
		}
		slog.Debug("remote call failed, may retry", "attempt", attempt, "error", err)
		return struct{}{}, err
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries),
	)
	return err
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e api.ErrorResponse
		_ = json.Unmarshal(raw, &e)
		msg := e.Error
		if msg == "" {
			msg = fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

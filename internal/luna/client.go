package luna

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clustervision/lunactl/internal/logging"
)

// Transport defines the daemon operations the rest of the client relies on.
// It is implemented by *Client and can be replaced in tests.
type Transport interface {
	Fetch(ctx context.Context, path string) (*Response, error)
	Submit(ctx context.Context, path string, payload any) (*Response, error)
	Remove(ctx context.Context, path string) (*Response, error)
}

// Ensure Client implements Transport at compile time.
var _ Transport = (*Client)(nil)

// TokenSource supplies the value of the x-access-tokens header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// ErrUnreachable wraps connection-level failures that survived every retry.
var ErrUnreachable = errors.New("daemon unreachable")

const (
	defaultUserAgent = "luna-cli/2.1"
	defaultTimeout   = 10 * time.Second
	tokenHeader      = "x-access-tokens"
	invocationHeader = "X-Luna-Invocation"
	defaultBackoff   = 250 * time.Millisecond
	maxBackoff       = 5 * time.Second
)

// Options configure a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	Insecure   bool
	Invocation string
	Logger     *slog.Logger
	Tokens     TokenSource

	// Backoff is the delay before the first retry; zero uses 250ms.
	Backoff time.Duration
}

// Client talks to the Luna daemon REST API.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	userAgent  string
	retries    int
	backoff    time.Duration
	invocation string
	logger     *slog.Logger
	tokens     TokenSource
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient builds a Client for the daemon at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // verify_certificate = false
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent:  defaultUserAgent,
		retries:    retries,
		backoff:    backoff,
		invocation: opts.Invocation,
		logger:     logger,
		tokens:     opts.Tokens,
		sleep:      sleepContext,
	}, nil
}

// UseTokens sets the token source attached to authenticated calls.
func (c *Client) UseTokens(tokens TokenSource) {
	c.tokens = tokens
}

// BaseURL returns the daemon root the client resolves paths against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Fetch performs an authenticated GET.
func (c *Client) Fetch(ctx context.Context, path string) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	return c.call(ctx, http.MethodGet, path, nil)
}

// Submit performs an authenticated POST with a JSON payload.
func (c *Client) Submit(ctx context.Context, path string, payload any) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = encoded
	}
	return c.call(ctx, http.MethodPost, path, body)
}

// Remove deletes a resource. The daemon exposes deletion as a GET on the
// resource's _delete action.
func (c *Client) Remove(ctx context.Context, path string) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	return c.call(ctx, http.MethodGet, strings.TrimRight(path, "/")+"/_delete", nil)
}

// Login exchanges credentials for an access token. It is the only call made
// without a token header.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	body, err := json.Marshal(TokenRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, TokenPath, body, "")
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	var payload TokenResponse
	if err := resp.Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return "", fmt.Errorf("daemon returned an empty token")
	}
	return payload.Token, nil
}

func (c *Client) call(ctx context.Context, method, path string, body []byte) (*Response, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, method, path, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || c.tokens == nil {
		return resp, nil
	}

	c.logger.Debug("token rejected, refreshing", slog.String("path", path))
	c.tokens.Invalidate()
	token, err = c.token(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, method, path, body, token)
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire token: %w", err)
	}
	return token, nil
}

// do runs one exchange, retrying transient failures with exponential backoff.
// A retryable status that outlives the retry budget is returned as-is.
func (c *Client) do(ctx context.Context, method, path string, body []byte, token string) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.once(ctx, method, path, body, token)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if attempt >= c.retries {
				return nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, path, err)
			}
			c.logger.Debug("request failed, retrying",
				slog.String("path", path), slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
		case retryableStatus(resp.StatusCode) && attempt < c.retries:
			c.logger.Debug("transient status, retrying",
				slog.String("path", path), slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt+1))
		default:
			return resp, nil
		}
		if err := c.sleep(ctx, calculateBackoff(attempt, c.backoff)); err != nil {
			return nil, err
		}
	}
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, token string) (*Response, error) {
	rel, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	reqURL := c.baseURL.ResolveReference(rel)
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(tokenHeader, token)
	}
	if c.invocation != "" {
		req.Header.Set(invocationHeader, c.invocation)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.Debug("daemon call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(started)))

	return newResponse(resp.StatusCode, raw), nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// calculateBackoff returns base doubled once per prior failure, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("daemon endpoint is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse endpoint %q: missing host", raw)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

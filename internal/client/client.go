package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dvcrn/adboard/internal/auth"
	"github.com/dvcrn/adboard/internal/credentials"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// HTTPClient is an interface for making HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Observer receives request and recovery events, typically for metrics.
type Observer interface {
	ObserveRequest(method, path string, status int, duration time.Duration)
	ObserveRecovery(outcome string)
}

// Recovery outcomes reported to the Observer.
const (
	RecoveryReplayed       = "replayed"
	RecoveryNoRefreshToken = "no_refresh_token"
	RecoveryRefreshFailed  = "refresh_failed"
)

// Client issues marketplace API requests with the stored access token and
// recovers once from an expired one by refreshing and replaying the request.
// It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	store      credentials.Store
	httpClient HTTPClient
	logger     zerolog.Logger
	observer   Observer
	validate   *validator.Validate
	userAgent  string
	now        func() time.Time

	// refreshes de-duplicates concurrent refreshes of the same refresh token.
	refreshes singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the API at baseURL that keeps its session in store.
func New(baseURL string, store credentials.Store, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must be absolute", baseURL)
	}

	c := &Client{
		baseURL:   u,
		store:     store,
		logger:    zerolog.Nop(),
		validate:  validator.New(),
		userAgent: "adboard/1.0",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(TransportOptions{})
	}
	return c, nil
}

// Store returns the session store the client reads and writes.
func (c *Client) Store() credentials.Store {
	return c.store
}

// Validate checks v against its `validate` struct tags.
func (c *Client) Validate(v interface{}) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// Issue sends req with the stored access token. On a 401 from an authenticated
// endpoint it refreshes the access token and replays req exactly once.
// Non-2xx answers are returned as *APIError, network failures as *TransportError.
func (c *Client) Issue(ctx context.Context, req Request) (*Response, error) {
	p, err := c.prepare(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, p)
	if err == nil {
		return resp, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsUnauthorized() || p.retried || auth.IsAuthEndpoint(p.path) {
		return nil, err
	}
	return c.recover(ctx, p)
}

// Do issues req and decodes the JSON response into out.
func (c *Client) Do(ctx context.Context, req Request, out interface{}) error {
	resp, err := c.Issue(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (c *Client) recover(ctx context.Context, p *pending) (*Response, error) {
	c.logger.Warn().
		Str("method", p.method).
		Str("path", p.path).
		Msg("Received 401 Unauthorized, attempting token refresh...")

	access, err := c.refreshForRecovery(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("path", p.path).Msg("Failed to refresh credentials after 401 error, clearing session")
		c.clearSession(ctx)
		if errors.Is(err, ErrNoRefreshToken) {
			c.observeRecovery(RecoveryNoRefreshToken)
		} else {
			c.observeRecovery(RecoveryRefreshFailed)
		}
		return nil, err
	}

	c.logger.Info().Msg("Successfully refreshed credentials, retrying request...")
	c.observeRecovery(RecoveryReplayed)

	resp, err := c.send(ctx, p.replay(access))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsUnauthorized() {
			c.logger.Error().Str("path", p.path).Msg("Still received 401 after token refresh, giving up")
		}
		return nil, err
	}
	c.logger.Info().Str("path", p.path).Msg("Request succeeded after token refresh")
	return resp, nil
}

func (c *Client) refreshForRecovery(ctx context.Context) (string, error) {
	refreshToken, err := c.store.Get(ctx, credentials.KeyRefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoRefreshToken, err)
	}
	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	v, err, shared := c.refreshes.Do(refreshToken, func() (interface{}, error) {
		out, err := c.Refresh(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			return "", err
		}
		return out.Access, nil
	})
	if shared {
		c.logger.Debug().Msg("Joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// send performs a single HTTP exchange. Requests that are not replays carry
// the access token currently in the store.
func (c *Client) send(ctx context.Context, p *pending) (*Response, error) {
	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, p.method, p.url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header = p.header.Clone()
	if c.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if !p.retried {
		if token := c.accessToken(ctx); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.observeRequest(p, 0, time.Since(start))
		return nil, &TransportError{Method: p.method, URL: p.url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observeRequest(p, 0, time.Since(start))
		return nil, &TransportError{Method: p.method, URL: p.url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	c.observeRequest(p, resp.StatusCode, time.Since(start))

	c.logger.Debug().
		Str("method", p.method).
		Str("path", p.path).
		Int("status_code", resp.StatusCode).
		Bool("replay", p.retried).
		Dur("duration", time.Since(start)).
		Msg("API request finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     p.method,
			Path:       p.path,
			Header:     resp.Header,
			Body:       respBody,
		}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

// accessToken reads the stored access token. A read failure is logged and
// treated as no token.
func (c *Client) accessToken(ctx context.Context) string {
	token, err := c.store.Get(ctx, credentials.KeyAccessToken)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read access token, sending request without authorization")
		return ""
	}
	return strings.TrimSpace(token)
}

func (c *Client) clearSession(ctx context.Context) {
	if err := credentials.Clear(context.WithoutCancel(ctx), c.store); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear session")
	}
}

func (c *Client) observeRequest(p *pending, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(p.method, p.path, status, d)
	}
}

func (c *Client) observeRecovery(outcome string) {
	if c.observer != nil {
		c.observer.ObserveRecovery(outcome)
	}
}

// tokenPreview shortens a token for logging.
func tokenPreview(token string) string {
	if len(token) > 12 {
		return token[:6] + "…" + token[len(token)-6:]
	}
	return token
}

// Package apiclient provides the HTTP client used for vehicle API calls.
//
// A Client is built from the access token in the token store and injects it
// as a bearer credential, together with the base URL and a JSON Accept
// header, into every request. Construction fails when the token is missing or
// expired; the client never refreshes on its own.
package apiclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/florianilch/chargectl/internal/apierror"
	"github.com/florianilch/chargectl/internal/tokenstore"
)

// DefaultTimeout bounds a single request against the untrusted upstream.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is read into memory.
const maxBodySize = 4 << 20

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Option configures a Client.
type Option func(*config)

type config struct {
	timeout   time.Duration
	transport http.RoundTripper
	now       func() time.Time
}

// WithTimeout sets the per-request timeout. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithTransport sets the base transport beneath the bearer-token and header transports.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) {
		c.transport = transport
	}
}

// WithClock overrides the clock used for the expiry check.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// Client sends authenticated requests relative to a base URL.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// New builds a Client from the access token currently held in store.
func New(ctx context.Context, store tokenstore.TokenStore, baseURL string, opts ...Option) (*Client, error) {
	cfg := &config{
		timeout:   DefaultTimeout,
		transport: http.DefaultTransport,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}
	// Request paths are relative; keep the base path as a directory.
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	record, ok, err := store.Get(ctx, tokenstore.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("reading access token: %w", err)
	}
	if !ok {
		return nil, &apierror.MissingCredentialError{Name: string(tokenstore.AccessToken)}
	}
	if record.Expired(cfg.now()) {
		return nil, &apierror.MissingCredentialError{Name: string(tokenstore.AccessToken), Expired: true}
	}

	// Expiry was checked above against the injected clock; leaving it unset
	// keeps oauth2 from applying its own.
	token := &oauth2.Token{AccessToken: record.Value, TokenType: "Bearer"}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: cfg.timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(token),
				Base:   &HeaderTransport{Base: cfg.transport},
			},
		},
	}, nil
}

// Do sends a request with an empty body to path, resolved against the base
// URL, and returns the status and full body. Non-200 statuses are not errors
// here; interpreting them is left to the response package.
func (c *Client) Do(ctx context.Context, method, path string) (*Response, error) {
	target, err := c.baseURL.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	slog.DebugContext(ctx, "sending request", "method", method, "url", target.Redacted())
	started := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	slog.DebugContext(ctx, "received response",
		"method", method,
		"path", target.Path,
		"status", resp.StatusCode,
		"duration", time.Since(started),
	)

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

package tokensource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/sjson"
	"golang.org/x/oauth2"

	"github.com/florianilch/chargectl/internal/response"
)

// maxTokenResponseSize caps how much of the token endpoint response is read.
const maxTokenResponseSize = 1 << 20

// RefresherOption configures a Refresher.
type RefresherOption func(*refresherConfig)

// refresherConfig holds configuration for NewRefresher.
type refresherConfig struct {
	baseTransport http.RoundTripper
	tokenURL      string
	timeout       time.Duration
}

// WithTransport sets a custom base transport for token refresh requests.
// If not provided, http.DefaultTransport is used.
func WithTransport(transport http.RoundTripper) RefresherOption {
	return func(c *refresherConfig) {
		c.baseTransport = transport
	}
}

// WithTokenURL replaces the token endpoint. Only tests point it elsewhere.
func WithTokenURL(tokenURL string) RefresherOption {
	return func(c *refresherConfig) {
		c.tokenURL = tokenURL
	}
}

// WithTimeout bounds a refresh request. Non-positive values keep the default of 30s.
func WithTimeout(timeout time.Duration) RefresherOption {
	return func(c *refresherConfig) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// Refresher exchanges refresh tokens for new token pairs.
type Refresher struct {
	cfg refresherConfig
}

// NewRefresher creates a Refresher for the Tesla token endpoint.
func NewRefresher(opts ...RefresherOption) *Refresher {
	cfg := refresherConfig{
		baseTransport: http.DefaultTransport,
		tokenURL:      TokenURL,
		timeout:       30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Refresher{cfg: cfg}
}

// Refresh performs a refresh_token grant and returns the validated grant.
// No retry is attempted.
func (r *Refresher) Refresh(ctx context.Context, refreshToken string) (response.TokenGrant, error) {
	if refreshToken == "" {
		return response.TokenGrant{}, fmt.Errorf("refresh token cannot be empty")
	}

	endpoint := Endpoint
	endpoint.TokenURL = r.cfg.tokenURL
	oauth2Config := &oauth2.Config{
		ClientID:     ClientID,
		ClientSecret: "", // public client
		Scopes:       scopes,
		Endpoint:     endpoint,
	}

	transport := &tokenRefreshTransport{
		base:  r.cfg.baseTransport,
		extra: map[string]string{"scope": scope},
	}
	httpClient := &http.Client{
		Timeout:   r.cfg.timeout,
		Transport: transport,
	}
	// oauth2 package injects custom HTTP clients via context (oauth2.HTTPClient key).
	oauthCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	// An empty access token forces the token source to refresh on first use.
	initialToken := &oauth2.Token{RefreshToken: refreshToken}

	slog.DebugContext(ctx, "refreshing access token", "token_url", r.cfg.tokenURL)

	if _, err := oauth2Config.TokenSource(oauthCtx, initialToken).Token(); err != nil {
		return response.TokenGrant{}, fmt.Errorf("refreshing token: %w", err)
	}
	if transport.grant == nil {
		return response.TokenGrant{}, fmt.Errorf("refreshing token: no response from token endpoint")
	}

	return *transport.grant, nil
}

// tokenRefreshTransport converts oauth2's form-encoded token refresh requests
// to JSON format required by Tesla's token endpoint, and holds the response
// to the token-refresh shape before oauth2 parses it.
// The oauth2 package guarantees this transport only receives token endpoint requests.
type tokenRefreshTransport struct {
	base  http.RoundTripper
	extra map[string]string

	// grant is the last validated response.
	grant *response.TokenGrant
}

// Compile-time check that tokenRefreshTransport implements http.RoundTripper.
var _ http.RoundTripper = (*tokenRefreshTransport)(nil)

// RoundTrip intercepts token refresh requests, converts them from form-encoded
// to JSON and validates the response.
func (t *tokenRefreshTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Defer close since we consume the body entirely and create a new body for the cloned request.
	defer func() { _ = req.Body.Close() }()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	formData, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing form data: %w", err)
	}

	params := make(map[string]string, len(formData)+len(t.extra))
	for key, values := range formData {
		params[key] = values[0] // OAuth2 spec defines single-value parameters
	}
	for key, value := range t.extra {
		if _, ok := params[key]; !ok {
			params[key] = value
		}
	}

	jsonBody, err := encodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("encoding JSON request: %w", err)
	}

	newReq := req.Clone(req.Context())
	newReq.Body = io.NopCloser(bytes.NewReader(jsonBody))
	newReq.ContentLength = int64(len(jsonBody))
	newReq.Header.Set("Content-Type", "application/json")
	newReq.Header.Set("Accept", "application/json")

	resp, err := t.base.RoundTrip(newReq)
	if err != nil {
		return nil, err
	}
	upstreamBody := resp.Body
	defer func() { _ = upstreamBody.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(upstreamBody, maxTokenResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	grant, err := response.TokenRefresh(resp.StatusCode, respBody)
	if err != nil {
		return nil, err
	}
	t.grant = &grant

	// Hand oauth2 a fresh body; the validated payload is JSON regardless of
	// what the server labelled it.
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	resp.ContentLength = int64(len(respBody))
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

// encodeParams builds a flat JSON object with keys in sorted order.
func encodeParams(params map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	out := []byte(`{}`)
	for _, key := range keys {
		var err error
		if out, err = sjson.SetBytes(out, escapeKey(key), params[key]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// escapeKey escapes sjson path metacharacters so key is set literally.
func escapeKey(key string) string {
	return pathEscaper.Replace(key)
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
	":", `\:`,
)

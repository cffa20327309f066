package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/florianilch/chargectl/internal/apiclient"
	"github.com/florianilch/chargectl/internal/apierror"
	"github.com/florianilch/chargectl/internal/response"
	"github.com/florianilch/chargectl/internal/tokensource"
	"github.com/florianilch/chargectl/internal/tokenstore"
	"github.com/florianilch/chargectl/internal/vehicle"
)

// App wires the token store, the authenticated client and the vehicle
// executor for a single invocation.
type App struct {
	cfg   *Config
	store tokenstore.TokenStore

	transport http.RoundTripper
	tokenURL  string
	now       func() time.Time
}

// Option configures an App.
type Option func(*App)

// WithTokenStore replaces the store built from the auth configuration.
func WithTokenStore(store tokenstore.TokenStore) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithTransport sets the transport used for vehicle API and token calls.
func WithTransport(transport http.RoundTripper) Option {
	return func(a *App) {
		a.transport = transport
	}
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(tokenURL string) Option {
	return func(a *App) {
		a.tokenURL = tokenURL
	}
}

// WithClock overrides the clock used for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// New creates a new App instance.
// The token store is opened but not read.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{
		cfg:       cfg,
		transport: http.DefaultTransport,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		store, err := cfg.Auth.NewTokenStore()
		if err != nil {
			return nil, fmt.Errorf("failed to create token store: %w", err)
		}
		a.store = store
	}

	return a, nil
}

// Close releases the token store, if it holds resources.
func (a *App) Close() error {
	if closer, ok := a.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Charging runs a charging action against the configured vehicle.
// The action is validated before the token store is read, so an unknown
// action never causes I/O.
func (a *App) Charging(ctx context.Context, action string) (vehicle.Outcome, error) {
	act, err := vehicle.ParseAction(action)
	if err != nil {
		return vehicle.Outcome{}, err
	}
	if a.cfg.Vehicle.ID == "" {
		return vehicle.Outcome{}, errors.New("vehicle.id is not configured")
	}

	client, err := apiclient.New(ctx, a.store, a.cfg.API.BaseURL,
		apiclient.WithTimeout(a.cfg.HTTP.Timeout),
		apiclient.WithTransport(a.transport),
		apiclient.WithClock(a.now),
	)
	if err != nil {
		return vehicle.Outcome{}, err
	}

	executor, err := vehicle.NewExecutor(client, a.cfg.Vehicle.ID)
	if err != nil {
		return vehicle.Outcome{}, err
	}

	return executor.Run(ctx, act)
}

// RefreshToken exchanges the stored refresh token for a new token pair and
// persists both.
func (a *App) RefreshToken(ctx context.Context) (response.TokenGrant, error) {
	opts := []tokensource.RefresherOption{
		tokensource.WithTransport(a.transport),
		tokensource.WithTimeout(a.cfg.HTTP.Timeout),
	}
	if a.tokenURL != "" {
		opts = append(opts, tokensource.WithTokenURL(a.tokenURL))
	}

	refresher, err := tokensource.NewPersistentRefresher(tokensource.NewRefresher(opts...), a.store)
	if err != nil {
		return response.TokenGrant{}, err
	}
	return refresher.Refresh(ctx)
}

// TokenState describes a stored token as seen by RetrieveTokens.
type TokenState string

const (
	TokenStatePresent TokenState = "present"
	TokenStateMissing TokenState = "missing"
	TokenStateExpired TokenState = "expired"
)

// TokenStatus reports one stored token.
type TokenStatus struct {
	Name  tokenstore.Name
	State TokenState
	Value string
	// ExpiresAt is zero for tokens without expiry.
	ExpiresAt time.Time
}

// RetrieveTokens reports every managed token. Absence is a state, not an error;
// only a failing store is.
func (a *App) RetrieveTokens(ctx context.Context) ([]TokenStatus, error) {
	statuses := make([]TokenStatus, 0, len(tokenstore.Names))
	for _, name := range tokenstore.Names {
		record, ok, err := a.store.Get(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		status := TokenStatus{Name: name, State: TokenStateMissing}
		if ok {
			status.Value = record.Value
			status.ExpiresAt = record.ExpiresAt
			status.State = TokenStatePresent
			if record.Expired(a.now()) {
				status.State = TokenStateExpired
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// TokenKind selects which token SetToken writes.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// ParseTokenKind validates s. Unknown strings yield *apierror.InvalidInputError.
func ParseTokenKind(s string) (TokenKind, error) {
	switch TokenKind(s) {
	case TokenKindAccess, TokenKindRefresh:
		return TokenKind(s), nil
	default:
		return "", &apierror.InvalidInputError{Field: "token type", Reason: fmt.Sprintf("%q (expected access or refresh)", s)}
	}
}

// Name returns the store key for the kind.
func (k TokenKind) Name() tokenstore.Name {
	if k == TokenKindRefresh {
		return tokenstore.RefreshToken
	}
	return tokenstore.AccessToken
}

// SetToken stores value under the given kind, overwriting any previous value.
// A positive ttl sets the expiry. Without one, an access token that is a JWT
// expires with its exp claim. The resulting expiry is returned, zero if none.
func (a *App) SetToken(ctx context.Context, kind, value string, ttl time.Duration) (time.Time, error) {
	k, err := ParseTokenKind(kind)
	if err != nil {
		return time.Time{}, err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &apierror.InvalidInputError{Field: "token", Reason: "missing token to set"}
	}
	if ttl < 0 {
		return time.Time{}, &apierror.InvalidInputError{Field: "ttl", Reason: "must not be negative"}
	}

	now := a.now()
	if ttl == 0 && k == TokenKindAccess {
		if exp, ok := jwtExpiry(value); ok {
			ttl = exp.Sub(now)
			if ttl <= 0 {
				return time.Time{}, &apierror.InvalidInputError{
					Field:  "token",
					Reason: "expired at " + exp.UTC().Format(time.RFC3339),
				}
			}
		}
	}

	if err := a.store.Set(ctx, k.Name(), value, ttl); err != nil {
		return time.Time{}, fmt.Errorf("failed to save %s token: %w", k, err)
	}

	// Report the expiry the store computed, not one derived from our clock.
	record, ok, err := a.store.Get(ctx, k.Name())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read back %s token: %w", k, err)
	}
	if !ok {
		return time.Time{}, fmt.Errorf("%s token not found after saving", k)
	}
	slog.InfoContext(ctx, "token saved", "name", k.Name(), "expires_at", record.ExpiresAt)
	return record.ExpiresAt, nil
}

// jwtExpiry reads the exp claim of an unverified JWT. The signature cannot be
// checked locally; the claim only schedules local expiry.
func jwtExpiry(value string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(value, &claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

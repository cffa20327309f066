package tokensource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/florianilch/chargectl/internal/apierror"
	"github.com/florianilch/chargectl/internal/response"
	"github.com/florianilch/chargectl/internal/tokenstore"
)

// PersistentRefresher refreshes the token pair held in a token store and
// writes the new pair back, overwriting both records.
type PersistentRefresher struct {
	refresher  *Refresher
	tokenStore tokenstore.TokenStore
	now        func() time.Time
}

// NewPersistentRefresher creates a PersistentRefresher.
// No I/O is performed until Refresh is called.
func NewPersistentRefresher(refresher *Refresher, tokenStore tokenstore.TokenStore) (*PersistentRefresher, error) {
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}
	if tokenStore == nil {
		return nil, fmt.Errorf("missing token store")
	}

	return &PersistentRefresher{
		refresher:  refresher,
		tokenStore: tokenStore,
		now:        time.Now,
	}, nil
}

// Refresh reads the stored refresh token, exchanges it and persists the new
// access and refresh tokens with the granted lifetime. The access token is
// written first so a failure between the writes leaves a usable access token.
func (p *PersistentRefresher) Refresh(ctx context.Context) (response.TokenGrant, error) {
	record, ok, err := p.tokenStore.Get(ctx, tokenstore.RefreshToken)
	if err != nil {
		return response.TokenGrant{}, fmt.Errorf("failed to read refresh token: %w", err)
	}
	if !ok {
		return response.TokenGrant{}, &apierror.MissingCredentialError{Name: string(tokenstore.RefreshToken)}
	}
	if record.Expired(p.now()) {
		return response.TokenGrant{}, &apierror.MissingCredentialError{Name: string(tokenstore.RefreshToken), Expired: true}
	}

	grant, err := p.refresher.Refresh(ctx, record.Value)
	if err != nil {
		return response.TokenGrant{}, err
	}

	if err := p.tokenStore.Set(ctx, tokenstore.AccessToken, grant.AccessToken, grant.ExpiresIn); err != nil {
		return response.TokenGrant{}, fmt.Errorf("failed to persist access token: %w", err)
	}
	if err := p.tokenStore.Set(ctx, tokenstore.RefreshToken, grant.RefreshToken, grant.ExpiresIn); err != nil {
		// Access token is already replaced, but the next refresh will use a
		// refresh token the provider may have rotated out.
		slog.ErrorContext(ctx, "failed to persist refresh token", "error", err)
		return response.TokenGrant{}, fmt.Errorf("failed to persist refresh token: %w", err)
	}

	slog.InfoContext(ctx, "tokens refreshed", "expires_in", grant.ExpiresIn)
	return grant, nil
}

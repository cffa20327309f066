// Package tokensource exchanges a refresh token for a new token pair at the
// Tesla OAuth2 endpoint and persists the result.
//
// The endpoint deviates from the standard in ways that require custom handling:
//   - Token refresh uses JSON-encoded requests (standard OAuth2 uses form-encoding)
//   - The scope must be repeated on every refresh request
//
// The response is held to a stricter contract than golang.org/x/oauth2
// enforces: status 200, a JSON body, and access_token, refresh_token and
// expires_in all present. Violations surface as apierror values.
//
// # Refreshing
//
// Use NewRefresher for a one-shot exchange:
//
//	r := tokensource.NewRefresher()
//	tok, err := r.Refresh(ctx, refreshToken)
//
// Use NewPersistentRefresher to read the refresh token from a token store and
// write both new tokens back:
//
//	p, err := tokensource.NewPersistentRefresher(r, store)
//	tok, err := p.Refresh(ctx)
//
// # Custom Base Transport
//
// Configure a custom base transport for token refresh requests (e.g., for proxies or tests):
//
//	r := tokensource.NewRefresher(tokensource.WithTransport(customTransport))
package tokensource

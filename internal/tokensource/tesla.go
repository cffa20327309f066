package tokensource

import (
	"strings"

	"golang.org/x/oauth2"
)

const (
	// ClientID is the public OAuth2 client identifier of the owner API.
	ClientID = "ownerapi"

	// TokenURL is the token endpoint used for refresh_token grants.
	TokenURL = "https://auth.tesla.com/oauth2/v3/token"
)

// Endpoint defines the OAuth2 endpoints for Tesla account authentication.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://auth.tesla.com/oauth2/v3/authorize",
	TokenURL:  TokenURL,
	AuthStyle: oauth2.AuthStyleInParams,
}

// scopes defines the OAuth scopes requested on every refresh
var scopes = []string{"openid", "email", "offline_access"}

// scope is the space-separated form sent in the request body.
var scope = strings.Join(scopes, " ")

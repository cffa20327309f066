package response

import (
	"errors"
	"math"
	"time"

	"github.com/tidwall/gjson"

	"github.com/florianilch/chargectl/internal/apierror"
)

var (
	errEmptyBody   = errors.New("empty body")
	errInvalidJSON = errors.New("invalid JSON")
)

// validateJSON checks that the payload is non-empty, valid JSON.
func validateJSON(payload []byte) error {
	if len(payload) == 0 {
		return errEmptyBody
	}
	if !gjson.ValidBytes(payload) {
		return errInvalidJSON
	}
	return nil
}

// maxExpiresIn is the largest lifetime in seconds that fits a time.Duration.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// TokenGrant is the scalar content of a successful token refresh.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// TokenRefresh extracts the grant from an OAuth token endpoint response.
func TokenRefresh(statusCode int, body []byte) (TokenGrant, error) {
	doc, err := Validate(EndpointTokenRefresh, statusCode, body)
	if err != nil {
		return TokenGrant{}, err
	}

	for _, path := range []string{"access_token", "refresh_token"} {
		if v := doc.Get(path); v.Type != gjson.String || v.String() == "" {
			return TokenGrant{}, &apierror.UnexpectedShapeError{Endpoint: string(EndpointTokenRefresh), Path: path}
		}
	}

	// Both refreshed records must carry an expiry, so the lifetime has to be
	// at least one second and representable as a time.Duration.
	expiresIn := doc.Get("expires_in")
	if expiresIn.Type != gjson.Number || expiresIn.Int() <= 0 || expiresIn.Int() > maxExpiresIn {
		return TokenGrant{}, &apierror.UnexpectedShapeError{Endpoint: string(EndpointTokenRefresh), Path: "expires_in"}
	}

	return TokenGrant{
		AccessToken:  doc.Get("access_token").String(),
		RefreshToken: doc.Get("refresh_token").String(),
		ExpiresIn:    time.Duration(expiresIn.Int()) * time.Second,
	}, nil
}

package apiclient

import (
	"net/http"
)

// UserAgent identifies this client to the vehicle API.
const UserAgent = "chargectl"

// allowedHeaders defines the HTTP headers permitted to reach the vehicle API.
var allowedHeaders = map[string]bool{
	"Content-Type":    true,
	"Content-Length":  true,
	"Accept":          true,
	"Accept-Encoding": true,
	"Authorization":   true,

	// W3C Trace Context for correlating exported logs with upstream traces.
	"Traceparent": true,
	"Tracestate":  true,
}

// HeaderTransport is an http.RoundTripper that strips headers outside the
// allowlist and sets a fixed User-Agent.
type HeaderTransport struct {
	Base http.RoundTripper
}

// Compile-time check that HeaderTransport implements http.RoundTripper.
var _ http.RoundTripper = (*HeaderTransport)(nil)

// RoundTrip implements http.RoundTripper interface.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	// RoundTrippers must not modify the caller's request
	newReq := req.Clone(req.Context())

	originalHeaders := newReq.Header
	newReq.Header = make(http.Header)
	for key, values := range originalHeaders {
		if allowedHeaders[key] {
			newReq.Header[key] = values
		}
	}
	newReq.Header.Set("User-Agent", UserAgent)

	return base.RoundTrip(newReq)
}

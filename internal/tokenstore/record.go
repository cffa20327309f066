package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// Name identifies a token record.
type Name string

const (
	// AccessToken is the short-lived bearer credential for vehicle API calls.
	AccessToken Name = "api.token"
	// RefreshToken is the credential used to mint a new access token.
	RefreshToken Name = "api.refresh_token"
)

// Names lists the records managed by the application, in display order.
var Names = []Name{RefreshToken, AccessToken}

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Validate reports whether n can be used as a storage key on every backend.
func (n Name) Validate() error {
	if !validName.MatchString(string(n)) {
		return fmt.Errorf("invalid token name %q", n)
	}
	return nil
}

// Record is a stored token value with an optional expiry.
type Record struct {
	Value string
	// ExpiresAt is zero when the record never expires.
	ExpiresAt time.Time
}

// HasExpiry reports whether the record carries an expiry.
func (r Record) HasExpiry() bool {
	return !r.ExpiresAt.IsZero()
}

// Expired reports whether the record is stale at now.
func (r Record) Expired(now time.Time) bool {
	return r.HasExpiry() && !now.Before(r.ExpiresAt)
}

// newRecord builds a record whose expiry is ttl from now (none if ttl <= 0).
// Expiries have second resolution on every backend: the instant is rounded to
// the nearest second, and never to one at or before now.
func newRecord(value string, ttl time.Duration, now time.Time) (Record, error) {
	if value == "" {
		return Record{}, fmt.Errorf("token value cannot be empty")
	}
	r := Record{Value: value}
	if ttl > 0 {
		r.ExpiresAt = expiryAt(now, ttl)
	}
	return r, nil
}

func expiryAt(now time.Time, ttl time.Duration) time.Time {
	at := now.Add(ttl).UTC().Round(time.Second)
	if !at.After(now) {
		at = at.Add(time.Second)
	}
	return at
}

// entry is the serialized form of a Record used by the file and keyring backends.
type entry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func encodeRecord(r Record) ([]byte, error) {
	e := entry{Value: r.Value}
	if r.HasExpiry() {
		t := r.ExpiresAt.UTC()
		e.ExpiresAt = &t
	}
	return json.Marshal(e)
}

func decodeRecord(data []byte) (Record, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Record{}, fmt.Errorf("decoding token entry: %w", err)
	}
	if e.Value == "" {
		return Record{}, fmt.Errorf("token entry has empty value")
	}
	r := Record{Value: e.Value}
	if e.ExpiresAt != nil {
		r.ExpiresAt = *e.ExpiresAt
	}
	return r, nil
}

// isPresent implements TokenStore.IsPresent on top of Get.
func isPresent(ctx context.Context, s TokenStore, name Name, now func() time.Time) (bool, error) {
	record, ok, err := s.Get(ctx, name)
	if err != nil || !ok {
		return false, err
	}
	return !record.Expired(now()), nil
}

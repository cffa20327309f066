package tokenstore

import (
	"context"
	"time"
)

// TokenStore reads and writes named token records to persistent storage.
//
// Absence is not an error: Get reports it with ok == false. A non-nil error
// means the backend itself is unusable.
type TokenStore interface {
	// Get returns the record stored under name. ok is false if no record exists.
	Get(ctx context.Context, name Name) (record Record, ok bool, err error)

	// Set overwrites the record under name. A ttl <= 0 stores the value
	// without expiry. Returns error if the backend is read-only.
	Set(ctx context.Context, name Name, value string, ttl time.Duration) error

	// IsPresent reports whether a non-expired record exists under name.
	IsPresent(ctx context.Context, name Name) (bool, error)
}

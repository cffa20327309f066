package tokenstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// EnvStore provides read-only access to tokens stored in environment variables.
// Records never expire. Not suitable for token refresh (requires writable storage).
type EnvStore struct {
	prefix string
	lookup func(string) (string, bool)
}

// Compile-time check to ensure EnvStore implements TokenStore
var _ TokenStore = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore reading variables named prefix + the
// upper-cased token name, e.g. TESLA_API_TOKEN for api.token.
func NewEnvStore(prefix string) (*EnvStore, error) {
	if prefix == "" {
		return nil, fmt.Errorf("environment prefix cannot be empty")
	}

	return &EnvStore{
		prefix: prefix,
		lookup: os.LookupEnv,
	}, nil
}

// Key returns the environment variable consulted for name.
func (e *EnvStore) Key(name Name) string {
	key := strings.NewReplacer(".", "_", "-", "_").Replace(string(name))
	return e.prefix + strings.ToUpper(key)
}

// Get returns the token from the environment variable. An unset or empty
// variable is reported as absence.
func (e *EnvStore) Get(ctx context.Context, name Name) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	if err := name.Validate(); err != nil {
		return Record{}, false, err
	}

	value, ok := e.lookup(e.Key(name))
	if !ok || value == "" {
		return Record{}, false, nil
	}
	return Record{Value: value}, true, nil
}

// Set is not supported for environment variables (they are read-only).
func (e *EnvStore) Set(ctx context.Context, name Name, _ string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only, cannot set %s", e.Key(name))
}

// IsPresent reports whether the variable for name is set and non-empty.
func (e *EnvStore) IsPresent(ctx context.Context, name Name) (bool, error) {
	return isPresent(ctx, e, name, time.Now)
}

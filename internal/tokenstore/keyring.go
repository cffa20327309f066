package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage for tokens.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// Each token is one secret, keyed by service and "<user>/<name>".
type KeyringStore struct {
	service string
	user    string
	now     func() time.Time
}

// Compile-time check to ensure KeyringStore implements TokenStore
var _ TokenStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the OS-native credential storage
// (macOS Keychain, Windows Credential Manager, etc.) using the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
		now:     time.Now,
	}, nil
}

func (k *KeyringStore) account(name Name) string {
	return k.user + "/" + string(name)
}

// Get returns the record from the system keyring. A missing secret is reported as absence.
func (k *KeyringStore) Get(ctx context.Context, name Name) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	if err := name.Validate(); err != nil {
		return Record{}, false, err
	}

	secret, err := keyring.Get(k.service, k.account(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	record, err := decodeRecord([]byte(secret))
	if err != nil {
		return Record{}, false, fmt.Errorf("keyring entry for service %s, account %s: %w", k.service, k.account(name), err)
	}
	return record, true, nil
}

// Set persists the record to the system keyring, overwriting any existing value.
func (k *KeyringStore) Set(ctx context.Context, name Name, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := name.Validate(); err != nil {
		return err
	}

	record, err := newRecord(value, ttl, k.now())
	if err != nil {
		return err
	}
	data, err := encodeRecord(record)
	if err != nil {
		return err
	}

	return keyring.Set(k.service, k.account(name), string(data))
}

// IsPresent reports whether a non-expired secret exists for name.
func (k *KeyringStore) IsPresent(ctx context.Context, name Name) (bool, error) {
	return isPresent(ctx, k, name, k.now)
}

package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// newTestStores returns every writable backend, each rooted in a fresh temp dir.
func newTestStores(t *testing.T) map[string]TokenStore {
	t.Helper()
	keyring.MockInit()

	file, err := NewFileStore(filepath.Join(t.TempDir(), "tokens"))
	require.NoError(t, err)
	file.now = fixedClock

	db, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.now = fixedClock

	kr, err := NewKeyringStore("chargectl-test", t.Name())
	require.NoError(t, err)
	kr.now = fixedClock

	return map[string]TokenStore{
		"file":    file,
		"sqlite":  db,
		"keyring": kr,
	}
}

func TestStores_GetAbsent(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			record, ok, err := store.Get(ctx, AccessToken)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, Record{}, record)

			present, err := store.IsPresent(ctx, AccessToken)
			require.NoError(t, err)
			assert.False(t, present)
		})
	}
}

func TestStores_SetAndGet(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, AccessToken, "access-1", time.Hour))
			require.NoError(t, store.Set(ctx, RefreshToken, "refresh-1", 0))

			access, ok, err := store.Get(ctx, AccessToken)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "access-1", access.Value)
			assert.True(t, access.ExpiresAt.Equal(fixedNow.Add(time.Hour)), "expires at %s", access.ExpiresAt)

			refresh, ok, err := store.Get(ctx, RefreshToken)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "refresh-1", refresh.Value)
			assert.False(t, refresh.HasExpiry())
		})
	}
}

func TestStores_SetOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, AccessToken, "old", time.Hour))
			require.NoError(t, store.Set(ctx, AccessToken, "new", 0))

			record, ok, err := store.Get(ctx, AccessToken)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, Record{Value: "new"}, record)
		})
	}
}

func TestStores_SetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, AccessToken, "X", 0))
			once, _, err := store.Get(ctx, AccessToken)
			require.NoError(t, err)

			require.NoError(t, store.Set(ctx, AccessToken, "X", 0))
			twice, _, err := store.Get(ctx, AccessToken)
			require.NoError(t, err)

			assert.Equal(t, once, twice)
		})
	}
}

func TestStores_ExpiredRecordIsNotPresent(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, AccessToken, "stale", time.Minute))

			present, err := store.IsPresent(ctx, AccessToken)
			require.NoError(t, err)
			assert.True(t, present)

			record, ok, err := store.Get(ctx, AccessToken)
			require.NoError(t, err)
			require.True(t, ok)
			assert.False(t, record.Expired(fixedNow))
			assert.True(t, record.Expired(fixedNow.Add(time.Minute)))
		})
	}
}

func TestStores_RejectEmptyValue(t *testing.T) {
	ctx := context.Background()
	for name, store := range newTestStores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Set(ctx, AccessToken, "", 0))
		})
	}
}

func TestFileStore_WritesSecurePermissions(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "tokens"))
	require.NoError(t, err)

	require.NoError(t, store.Set(context.Background(), AccessToken, "secret", 0))

	info, err := os.Stat(filepath.Join(store.Dir(), string(AccessToken)))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dirInfo, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dirInfo.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(store.Dir(), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStore_InsecurePermissionsIsError(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, AccessToken, "secret", 0))
	require.NoError(t, os.Chmod(filepath.Join(store.Dir(), string(AccessToken)), 0644))

	_, ok, err := store.Get(ctx, AccessToken)
	assert.False(t, ok)
	assert.ErrorContains(t, err, "insecure permissions")
}

func TestFileStore_CorruptEntryIsError(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), string(RefreshToken)), []byte("not json"), 0600))

	_, ok, err := store.Get(context.Background(), RefreshToken)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = store.Set(context.Background(), Name("../escape"), "x", 0)
	assert.ErrorContains(t, err, "invalid token name")
}

func TestFileStore_CancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Set(ctx, AccessToken, "x", 0), context.Canceled)
	_, _, err = store.Get(ctx, AccessToken)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteStore_PersistsAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.db")
	ctx := context.Background()

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, RefreshToken, "durable", 0))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = second.Close() }()

	record, ok, err := second.Get(ctx, RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "durable", record.Value)
}

func TestEnvStore(t *testing.T) {
	store, err := NewEnvStore("TESLA_")
	require.NoError(t, err)
	store.lookup = func(key string) (string, bool) {
		env := map[string]string{
			"TESLA_API_TOKEN":         "from-env",
			"TESLA_API_REFRESH_TOKEN": "",
		}
		v, ok := env[key]
		return v, ok
	}
	ctx := context.Background()

	assert.Equal(t, "TESLA_API_REFRESH_TOKEN", store.Key(RefreshToken))

	record, ok, err := store.Get(ctx, AccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Record{Value: "from-env"}, record)

	_, ok, err = store.Get(ctx, RefreshToken)
	require.NoError(t, err)
	assert.False(t, ok, "empty variable counts as absent")

	assert.ErrorContains(t, store.Set(ctx, AccessToken, "x", 0), "read-only")
}

func TestNewStores_RejectEmptyArguments(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
	_, err = NewEnvStore("")
	assert.Error(t, err)
	_, err = NewKeyringStore("", "user")
	assert.Error(t, err)
	_, err = NewKeyringStore("service", "")
	assert.Error(t, err)
	_, err = NewSQLiteStore("")
	assert.Error(t, err)
}

func TestRecord_Expired(t *testing.T) {
	never := Record{Value: "x"}
	assert.False(t, never.Expired(fixedNow.Add(100*365*24*time.Hour)))

	r := Record{Value: "x", ExpiresAt: fixedNow}
	assert.False(t, r.Expired(fixedNow.Add(-time.Second)))
	assert.True(t, r.Expired(fixedNow))
}

func TestNewRecord_SubSecondTTL(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		ttl  time.Duration
		want time.Time
	}{
		{name: "rounds to nearest second", now: fixedNow.Add(900 * time.Millisecond), ttl: 500 * time.Millisecond, want: fixedNow.Add(time.Second)},
		{name: "rounds up past now", now: fixedNow.Add(200 * time.Millisecond), ttl: 100 * time.Millisecond, want: fixedNow.Add(time.Second)},
		{name: "whole seconds unchanged", now: fixedNow, ttl: time.Minute, want: fixedNow.Add(time.Minute)},
		{name: "late clock rounds back to the second", now: fixedNow.Add(3 * time.Millisecond), ttl: time.Hour, want: fixedNow.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := newRecord("x", tt.ttl, tt.now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(r.ExpiresAt), "want %s, got %s", tt.want, r.ExpiresAt)
			assert.False(t, r.Expired(tt.now), "expired as soon as it was written")
		})
	}
}

func TestSQLiteStore_SubSecondTTLNotExpired(t *testing.T) {
	ctx := context.Background()
	now := fixedNow.Add(200 * time.Millisecond)

	db, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.now = func() time.Time { return now }

	require.NoError(t, db.Set(ctx, AccessToken, "short", 500*time.Millisecond))

	present, err := db.IsPresent(ctx, AccessToken)
	require.NoError(t, err)
	assert.True(t, present)
}

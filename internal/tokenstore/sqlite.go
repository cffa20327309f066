package tokenstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tokens (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps token records in a single SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check to ensure SQLiteStore implements TokenStore
var _ TokenStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and ensures the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening token database: %w", err)
	}
	// One invocation, one statement at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating token schema: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		now: time.Now,
	}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the row for name. No row is reported as absence.
func (s *SQLiteStore) Get(ctx context.Context, name Name) (Record, bool, error) {
	if err := name.Validate(); err != nil {
		return Record{}, false, err
	}

	var (
		value     string
		expiresAt sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, "SELECT value, expires_at FROM tokens WHERE name = ?", string(name)).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("reading %s: %w", name, err)
	}

	record := Record{Value: value}
	if expiresAt.Valid {
		record.ExpiresAt = time.Unix(expiresAt.Int64, 0).UTC()
	}
	return record, true, nil
}

// Set upserts the row for name.
func (s *SQLiteStore) Set(ctx context.Context, name Name, value string, ttl time.Duration) error {
	if err := name.Validate(); err != nil {
		return err
	}

	now := s.now()
	record, err := newRecord(value, ttl, now)
	if err != nil {
		return err
	}

	var expiresAt sql.NullInt64
	if record.HasExpiry() {
		expiresAt = sql.NullInt64{Int64: record.ExpiresAt.Unix(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tokens (name, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		string(name), record.Value, expiresAt, now.Unix())
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// IsPresent reports whether a non-expired row exists for name.
func (s *SQLiteStore) IsPresent(ctx context.Context, name Name) (bool, error) {
	return isPresent(ctx, s, name, s.now)
}

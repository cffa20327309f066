// Package tokenstore provides persistent storage for the named API tokens.
//
// A store holds two records, the access token (api.token) and the refresh
// token (api.refresh_token), each with an optional expiry. Four backends are
// available with different deployment tradeoffs:
//   - File: one entry file per token in a private directory, atomic writes
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - SQLite: a single database file, useful when the cache directory is shared
//   - Env: read-only environment variable access (requires external secret management)
//
// Token refresh requires writable storage (file, keyring or sqlite).
// Writes are last-write-wins; no locking is performed across processes.
package tokenstore

// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package sqlite implements durable persistence for accounts, credentials,
// ceremonies, and sessions over a single SQLite database file.
//
// A single file backs all relying-party state so account deletion and the
// account-plus-first-credential commit share one transaction boundary.
// Timestamps are stored as UTC milliseconds.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL DEFAULT '',
	email             TEXT,
	email_verified_at INTEGER,
	created_at        INTEGER NOT NULL,
	last_sign_in_at   INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email
	ON accounts(email) WHERE email IS NOT NULL AND email <> '';

CREATE TABLE IF NOT EXISTS credentials (
	id              TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	sign_count      INTEGER NOT NULL DEFAULT 0,
	credential_json TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	last_used_at    INTEGER
);

CREATE INDEX IF NOT EXISTS idx_credentials_account ON credentials(account_id);

CREATE TABLE IF NOT EXISTS ceremonies (
	id           TEXT PRIMARY KEY,
	purpose      TEXT NOT NULL,
	account_id   TEXT NOT NULL DEFAULT '',
	staged_json  TEXT,
	session_json TEXT NOT NULL,
	expires_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_account ON sessions(account_id);
`

// Store owns the SQLite database and hands out the typed stores the
// passkey and session services depend on. All stores share one handle, so
// the account-plus-credential commit and the cascading deletes stay inside
// a single database.
type Store struct {
	sqlDB *sql.DB

	accounts    *AccountStore
	credentials *CredentialStore
	ceremonies  *CeremonyStore
	sessions    *SessionStore
}

var (
	_ passkey.AccountStore    = (*AccountStore)(nil)
	_ passkey.CredentialStore = (*CredentialStore)(nil)
	_ passkey.CeremonyStore   = (*CeremonyStore)(nil)
	_ session.Store           = (*SessionStore)(nil)
)

// Accounts returns the account persistence layer.
func (s *Store) Accounts() *AccountStore { return s.accounts }

// Credentials returns the credential persistence layer.
func (s *Store) Credentials() *CredentialStore { return s.credentials }

// Ceremonies returns the ceremony persistence layer.
func (s *Store) Ceremonies() *CeremonyStore { return s.ceremonies }

// Sessions returns the session persistence layer.
func (s *Store) Sessions() *SessionStore { return s.sessions }

// Open opens the SQLite store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	// modernc's driver only applies pragmas given through _pragma, and it
	// applies them on every connection the pool opens. foreign_keys in
	// particular is per-connection state; setting it any other way leaves
	// pooled connections with cascades disabled.
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	store.accounts = &AccountStore{db: sqlDB}
	store.credentials = &CredentialStore{db: sqlDB}
	store.ceremonies = &CeremonyStore{db: sqlDB}
	store.sessions = &SessionStore{db: sqlDB}
	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	return s.sqlDB
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func millisPtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

// isUniqueViolation detects SQLite unique constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

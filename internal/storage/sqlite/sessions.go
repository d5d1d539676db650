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

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// SessionStore implements session.Store over SQLite. Sessions reference
// their account with ON DELETE CASCADE, so deleting an account revokes its
// sessions in the same transaction.
type SessionStore struct {
	db *sql.DB
}

// Save stores a new session.
func (s *SessionStore) Save(ctx context.Context, sess session.Session) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (token, account_id, created_at, expires_at)
VALUES (?, ?, ?, ?)`,
		sess.Token,
		sess.AccountID,
		toMillis(sess.CreatedAt),
		toMillis(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by token.
func (s *SessionStore) Get(ctx context.Context, token string) (session.Session, error) {
	var sess session.Session
	var createdAt, expiresAt int64

	err := s.db.QueryRowContext(ctx, `
SELECT token, account_id, created_at, expires_at
FROM sessions WHERE token = ?`, token).
		Scan(&sess.Token, &sess.AccountID, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}

	sess.CreatedAt = fromMillis(createdAt)
	sess.ExpiresAt = fromMillis(expiresAt)
	return sess, nil
}

// Extend moves a session's expiry forward.
func (s *SessionStore) Extend(ctx context.Context, token string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET expires_at = ? WHERE token = ?",
		toMillis(expiresAt), token)
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("extend session: %w", err)
	}
	if affected == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Delete removes a session by token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByAccountID removes all sessions bound to an account.
func (s *SessionStore) DeleteByAccountID(ctx context.Context, accountID string) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE account_id = ?", accountID)
	if err != nil {
		return 0, fmt.Errorf("delete account sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete account sessions: %w", err)
	}
	return int(affected), nil
}

// DeleteExpired evicts sessions past their expiry.
func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return int(affected), nil
}

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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// CredentialStore implements passkey.CredentialStore over SQLite.
type CredentialStore struct {
	db *sql.DB
}

type execContexter interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCredential(ctx context.Context, target execContexter, cred *passkey.Credential) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	var lastUsed sql.NullInt64
	if !cred.LastUsedAt.IsZero() {
		lastUsed = sql.NullInt64{Int64: toMillis(cred.LastUsedAt), Valid: true}
	}

	_, err = target.ExecContext(ctx, `
INSERT INTO credentials (id, account_id, sign_count, credential_json, created_at, last_used_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		passkey.EncodeCredentialID(cred.ID),
		cred.AccountID,
		cred.Authenticator.SignCount,
		string(payload),
		toMillis(cred.CreatedAt),
		lastUsed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return passkey.ErrCredentialExists
		}
		return fmt.Errorf("insert credential: %w", err)
	}
	return nil
}

func scanCredential(signCount uint32, payload string) (*passkey.Credential, error) {
	var cred passkey.Credential
	if err := json.Unmarshal([]byte(payload), &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential: %w", err)
	}
	// The sign_count column is authoritative: the conditional counter update
	// writes it together with the JSON, but a reader must never trust a
	// stale JSON copy over the column the compare-and-set runs against.
	cred.Authenticator.SignCount = signCount
	return &cred, nil
}

// Save stores a new credential.
func (s *CredentialStore) Save(ctx context.Context, cred *passkey.Credential) error {
	return insertCredential(ctx, s.db, cred)
}

// GetByAccountID retrieves all credentials for an account.
func (s *CredentialStore) GetByAccountID(ctx context.Context, accountID string) ([]*passkey.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT sign_count, credential_json FROM credentials
WHERE account_id = ? ORDER BY created_at`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()

	creds := make([]*passkey.Credential, 0)
	for rows.Next() {
		var signCount uint32
		var payload string
		if err := rows.Scan(&signCount, &payload); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		cred, err := scanCredential(signCount, payload)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// GetByCredentialID retrieves a credential by its ID.
func (s *CredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (*passkey.Credential, error) {
	var signCount uint32
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT sign_count, credential_json FROM credentials WHERE id = ?",
		passkey.EncodeCredentialID(credID)).Scan(&signCount, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, passkey.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return scanCredential(signCount, payload)
}

// UpdateCounter conditionally advances the stored credential state. The
// UPDATE only applies while the sign_count column still equals prevCount, so
// two assertions racing from the same stale counter admit exactly one winner.
func (s *CredentialStore) UpdateCounter(ctx context.Context, cred *passkey.Credential, prevCount uint32) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	var lastUsed sql.NullInt64
	if !cred.LastUsedAt.IsZero() {
		lastUsed = sql.NullInt64{Int64: toMillis(cred.LastUsedAt), Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
UPDATE credentials
SET sign_count = ?, credential_json = ?, last_used_at = ?
WHERE id = ? AND sign_count = ?`,
		cred.Authenticator.SignCount,
		string(payload),
		lastUsed,
		passkey.EncodeCredentialID(cred.ID),
		prevCount,
	)
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a missing credential from a lost race.
	var exists int
	err = s.db.QueryRowContext(ctx,
		"SELECT 1 FROM credentials WHERE id = ?",
		passkey.EncodeCredentialID(cred.ID)).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return passkey.ErrCredentialNotFound
	}
	if err != nil {
		return fmt.Errorf("update counter: %w", err)
	}
	return passkey.ErrCounterRegression
}

// Delete removes a credential by its ID.
func (s *CredentialStore) Delete(ctx context.Context, credID []byte) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM credentials WHERE id = ?", passkey.EncodeCredentialID(credID))
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if affected == 0 {
		return passkey.ErrCredentialNotFound
	}
	return nil
}

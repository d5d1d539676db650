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
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// CeremonyStore implements passkey.CeremonyStore over SQLite. The ceremony
// rows hold go-webauthn session state as JSON.
type CeremonyStore struct {
	db *sql.DB
}

// Save stores ceremony state under its ID.
func (s *CeremonyStore) Save(ctx context.Context, ceremony *passkey.Ceremony) error {
	sessionJSON, err := json.Marshal(ceremony.Data)
	if err != nil {
		return fmt.Errorf("marshal ceremony session: %w", err)
	}

	var stagedJSON sql.NullString
	if ceremony.Staged != nil {
		raw, err := json.Marshal(ceremony.Staged)
		if err != nil {
			return fmt.Errorf("marshal staged account: %w", err)
		}
		stagedJSON = sql.NullString{String: string(raw), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO ceremonies (id, purpose, account_id, staged_json, session_json, expires_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		ceremony.ID,
		string(ceremony.Purpose),
		ceremony.AccountID,
		stagedJSON,
		string(sessionJSON),
		toMillis(ceremony.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert ceremony: %w", err)
	}
	return nil
}

// Consume atomically retrieves and deletes ceremony state. The DELETE runs
// in the same transaction as the read, so a replayed finish request cannot
// observe the record.
func (s *CeremonyStore) Consume(ctx context.Context, id string, purpose passkey.Purpose) (*passkey.Ceremony, error) {
	var (
		storedPurpose string
		accountID     string
		stagedJSON    sql.NullString
		sessionJSON   string
		expiresAt     int64
	)

	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
SELECT purpose, account_id, staged_json, session_json, expires_at
FROM ceremonies WHERE id = ?`, id)
		if err := row.Scan(&storedPurpose, &accountID, &stagedJSON, &sessionJSON, &expiresAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return passkey.ErrCeremonyNotFound
			}
			return fmt.Errorf("get ceremony: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM ceremonies WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete ceremony: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if time.Now().UTC().After(fromMillis(expiresAt)) {
		return nil, passkey.ErrCeremonyExpired
	}
	if passkey.Purpose(storedPurpose) != purpose {
		return nil, passkey.ErrCeremonyPurposeMismatch
	}

	ceremony := &passkey.Ceremony{
		ID:        id,
		Purpose:   purpose,
		AccountID: accountID,
		ExpiresAt: fromMillis(expiresAt),
	}

	var data webauthn.SessionData
	if err := json.Unmarshal([]byte(sessionJSON), &data); err != nil {
		return nil, fmt.Errorf("unmarshal ceremony session: %w", err)
	}
	ceremony.Data = data

	if stagedJSON.Valid {
		var staged passkey.Account
		if err := json.Unmarshal([]byte(stagedJSON.String), &staged); err != nil {
			return nil, fmt.Errorf("unmarshal staged account: %w", err)
		}
		ceremony.Staged = &staged
	}

	return ceremony, nil
}

// DeleteExpired evicts ceremonies past their window.
func (s *CeremonyStore) DeleteExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM ceremonies WHERE expires_at < ?", toMillis(time.Now()))
	if err != nil {
		return 0, fmt.Errorf("delete expired ceremonies: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired ceremonies: %w", err)
	}
	return int(affected), nil
}

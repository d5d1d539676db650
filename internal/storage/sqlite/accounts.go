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

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// AccountStore implements passkey.AccountStore over SQLite.
type AccountStore struct {
	db *sql.DB
}

const accountColumns = "id, name, email, email_verified_at, created_at, last_sign_in_at"

type accountScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row accountScanner) (passkey.Account, error) {
	var account passkey.Account
	var email sql.NullString
	var emailVerifiedAt, lastSignInAt sql.NullInt64
	var createdAt int64

	if err := row.Scan(&account.ID, &account.Name, &email, &emailVerifiedAt, &createdAt, &lastSignInAt); err != nil {
		return passkey.Account{}, err
	}

	account.Email = email.String
	account.EmailVerifiedAt = millisPtr(emailVerifiedAt)
	account.CreatedAt = fromMillis(createdAt)
	account.LastSignInAt = millisPtr(lastSignInAt)
	return account, nil
}

func nullEmail(email string) sql.NullString {
	if email == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: email, Valid: true}
}

// GetByID retrieves an account by its identifier.
func (s *AccountStore) GetByID(ctx context.Context, id string) (passkey.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return passkey.Account{}, passkey.ErrAccountNotFound
	}
	if err != nil {
		return passkey.Account{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// GetByEmail retrieves an account by its email address.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (passkey.Account, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = ?", email)

	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return passkey.Account{}, passkey.ErrAccountNotFound
	}
	if err != nil {
		return passkey.Account{}, fmt.Errorf("get account by email: %w", err)
	}
	return account, nil
}

// CreateWithCredential commits a staged account together with its first
// credential in one transaction.
func (s *AccountStore) CreateWithCredential(ctx context.Context, account passkey.Account, cred *passkey.Credential) error {
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO accounts (id, name, email, email_verified_at, created_at, last_sign_in_at)
VALUES (?, ?, ?, ?, ?, ?)`,
			account.ID,
			account.Name,
			nullEmail(account.Email),
			nullMillis(account.EmailVerifiedAt),
			toMillis(account.CreatedAt),
			nullMillis(account.LastSignInAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return passkey.ErrAccountExists
			}
			return fmt.Errorf("insert account: %w", err)
		}
		return insertCredential(ctx, tx, cred)
	})
	return err
}

// Update persists profile changes.
func (s *AccountStore) Update(ctx context.Context, account passkey.Account) error {
	result, err := s.db.ExecContext(ctx, `
UPDATE accounts
SET name = ?, email = ?, email_verified_at = ?, last_sign_in_at = ?
WHERE id = ?`,
		account.Name,
		nullEmail(account.Email),
		nullMillis(account.EmailVerifiedAt),
		nullMillis(account.LastSignInAt),
		account.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return passkey.ErrEmailTaken
		}
		return fmt.Errorf("update account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if affected == 0 {
		return passkey.ErrAccountNotFound
	}
	return nil
}

// Delete removes an account; credentials and sessions cascade via foreign
// keys in the same transaction.
func (s *AccountStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if affected == 0 {
		return passkey.ErrAccountNotFound
	}
	return nil
}

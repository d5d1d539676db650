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

package passkey

import (
	"context"
)

// AccountStore is the interface applications implement for account
// persistence.
type AccountStore interface {
	// GetByID retrieves an account by its identifier.
	// Returns ErrAccountNotFound if the account does not exist.
	GetByID(ctx context.Context, id string) (Account, error)

	// GetByEmail retrieves an account by its email address.
	// Returns ErrAccountNotFound if the account does not exist.
	GetByEmail(ctx context.Context, email string) (Account, error)

	// CreateWithCredential commits a staged account together with its first
	// credential. The write is atomic: a failed ceremony must not leave an
	// account without a credential or vice versa.
	// Returns ErrAccountExists if the email is already taken.
	CreateWithCredential(ctx context.Context, account Account, cred *Credential) error

	// Update persists profile changes (name, email, verification, last
	// sign-in). Returns ErrEmailTaken on an email uniqueness violation and
	// ErrAccountNotFound if the account does not exist.
	Update(ctx context.Context, account Account) error

	// Delete removes an account and cascades to its credentials. The
	// deletion is transactional: a crash mid-deletion cannot leave orphaned
	// credentials. Returns ErrAccountNotFound if the account does not exist.
	Delete(ctx context.Context, id string) error
}

// CredentialStore manages passkey credential persistence.
type CredentialStore interface {
	// Save stores a new credential.
	// Returns ErrCredentialExists for a duplicate credential ID.
	Save(ctx context.Context, cred *Credential) error

	// GetByAccountID retrieves all credentials for an account.
	// Returns an empty slice if the account has no credentials.
	GetByAccountID(ctx context.Context, accountID string) ([]*Credential, error)

	// GetByCredentialID retrieves a credential by its ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error)

	// UpdateCounter conditionally advances the stored credential state. The
	// update only applies while the durably stored signature counter still
	// equals prevCount; otherwise ErrCounterRegression is returned. This is
	// the compare-and-set that keeps two concurrent assertions replayed from
	// the same stale counter from both succeeding.
	UpdateCounter(ctx context.Context, cred *Credential, prevCount uint32) error

	// Delete removes a credential by its ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	Delete(ctx context.Context, credID []byte) error
}

// CeremonyStore manages the ephemeral challenge state of in-flight
// ceremonies. Records are short-lived and single-use.
type CeremonyStore interface {
	// Save stores ceremony state under its ID.
	Save(ctx context.Context, ceremony *Ceremony) error

	// Consume atomically retrieves and deletes ceremony state. The record is
	// removed whether or not the caller's subsequent verification succeeds,
	// so a challenge can never be replayed.
	//
	// Returns ErrCeremonyNotFound for a missing or already-consumed ID,
	// ErrCeremonyExpired past the challenge window, and
	// ErrCeremonyPurposeMismatch when the record was issued for a different
	// flow. Expired and mismatched records are consumed as well.
	Consume(ctx context.Context, id string, purpose Purpose) (*Ceremony, error)

	// DeleteExpired evicts ceremonies past their window. Housekeeping only:
	// Consume already rejects expired records.
	DeleteExpired(ctx context.Context) (int, error)
}

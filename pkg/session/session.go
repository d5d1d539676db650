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

// Package session issues and resolves the server-side sessions that bind a
// verified passkey ceremony to an account.
//
// A session is referenced by an opaque, cryptographically random token. Every
// authorization checkpoint resolves the token independently through
// Service.Resolve, which treats a missing or expired session as a normal
// outcome rather than an error.
package session

import (
	"context"
	"errors"
	"time"
)

// Session binds exactly one account to an opaque token.
type Session struct {
	// Token is the opaque session reference handed to the client. It is
	// generated from crypto/rand and never derived from account data.
	Token string `json:"token"`

	// AccountID is the bound account.
	AccountID string `json:"account_id"`

	// CreatedAt is when the session was issued.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt bounds the session lifetime. Resolve extends it once the
	// session passes half of its lifetime (rolling renewal).
	ExpiresAt time.Time `json:"expires_at"`
}

// ErrNotFound is returned by stores when a session token is unknown.
var ErrNotFound = errors.New("session not found")

// Store is the persistence interface for sessions.
type Store interface {
	// Save stores a new session.
	Save(ctx context.Context, session Session) error

	// Get retrieves a session by token. Returns ErrNotFound if the token is
	// unknown. Expiry is enforced by the Service, not the store.
	Get(ctx context.Context, token string) (Session, error)

	// Extend moves a session's expiry forward.
	Extend(ctx context.Context, token string, expiresAt time.Time) error

	// Delete removes a session by token. Deleting an unknown token is not an
	// error.
	Delete(ctx context.Context, token string) error

	// DeleteByAccountID removes all sessions bound to an account.
	DeleteByAccountID(ctx context.Context, accountID string) (int, error)

	// DeleteExpired evicts sessions past their expiry.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

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

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/metrics"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 24 * time.Hour

// tokenBytes is the entropy of a session token.
const tokenBytes = 32

// Service issues, resolves, and revokes sessions.
type Service struct {
	store Store
	ttl   time.Duration
	clock func() time.Time
}

// ServiceParams contains dependencies for creating a session service.
type ServiceParams struct {
	// Store is the session persistence layer (required).
	Store Store

	// TTL is the session lifetime. Defaults to DefaultTTL.
	TTL time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewService creates a new session service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	ttl := params.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: params.Store, ttl: ttl, clock: clock}, nil
}

// Issue creates a new session bound to the account and returns it. The token
// is the opaque reference the client presents on subsequent requests.
func (s *Service) Issue(ctx context.Context, accountID string) (Session, error) {
	if accountID == "" {
		return Session{}, fmt.Errorf("account id is required")
	}

	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return Session{}, fmt.Errorf("generate session token: %w", err)
	}

	now := s.clock().UTC()
	session := Session{
		Token:     hex.EncodeToString(raw),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Save(ctx, session); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	metrics.SessionIssued()
	return session, nil
}

// Resolve looks up a session by token and validates its expiry. A missing,
// empty, or expired token resolves to (nil, nil): "no session" is a normal
// outcome on the hot path called by every protected request, never an error.
//
// A session past half of its lifetime is renewed for a full TTL (rolling
// renewal); a renewal failure does not fail resolution.
func (s *Service) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.store.Get(ctx, token)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	now := s.clock().UTC()
	if now.After(session.ExpiresAt) {
		_ = s.store.Delete(ctx, token)
		metrics.SessionClosed()
		return nil, nil
	}

	if session.ExpiresAt.Sub(now) < s.ttl/2 {
		session.ExpiresAt = now.Add(s.ttl)
		_ = s.store.Extend(ctx, token, session.ExpiresAt)
	}

	return &session, nil
}

// Revoke invalidates a session immediately (sign-out). Revoking an unknown
// token is not an error.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	metrics.SessionClosed()
	return nil
}

// RevokeAccount invalidates every session bound to the account. Used when an
// account is deleted.
func (s *Service) RevokeAccount(ctx context.Context, accountID string) error {
	removed, err := s.store.DeleteByAccountID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("delete account sessions: %w", err)
	}
	for i := 0; i < removed; i++ {
		metrics.SessionClosed()
	}
	return nil
}

// Cleanup evicts expired sessions. Housekeeping only: Resolve already
// rejects expired sessions.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	return s.store.DeleteExpired(ctx, s.clock().UTC())
}

// TTL returns the configured session lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		svc, err := NewService(ServiceParams{})
		require.Error(t, err)
		assert.Nil(t, svc)
		assert.Contains(t, err.Error(), "store is required")
	})

	t.Run("applies defaults", func(t *testing.T) {
		svc, err := NewService(ServiceParams{Store: NewMemoryStore()})
		require.NoError(t, err)
		assert.Equal(t, DefaultTTL, svc.TTL())
	})
}

func TestIssueAndResolve(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(ServiceParams{Store: NewMemoryStore()})
	require.NoError(t, err)

	session, err := svc.Issue(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, session.Token, 64) // 32 bytes hex encoded
	assert.Equal(t, "acct-1", session.AccountID)
	assert.True(t, session.ExpiresAt.After(session.CreatedAt))

	resolved, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "acct-1", resolved.AccountID)
}

func TestIssueRequiresAccount(t *testing.T) {
	svc, err := NewService(ServiceParams{Store: NewMemoryStore()})
	require.NoError(t, err)

	_, err = svc.Issue(context.Background(), "")
	require.Error(t, err)
}

func TestTokensAreUnique(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(ServiceParams{Store: NewMemoryStore()})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		session, err := svc.Issue(ctx, "acct-1")
		require.NoError(t, err)
		assert.False(t, seen[session.Token], "duplicate token issued")
		seen[session.Token] = true
	}
}

func TestResolveUnknownToken(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(ServiceParams{Store: NewMemoryStore()})
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, resolved)

	resolved, err = svc.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestResolveExpiredToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	svc, err := NewService(ServiceParams{
		Store: store,
		TTL:   time.Hour,
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)

	session, err := svc.Issue(ctx, "acct-1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)

	resolved, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	// Expired sessions are evicted on resolution.
	assert.Equal(t, 0, store.Count())
}

func TestResolveRollingRenewal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	svc, err := NewService(ServiceParams{
		Store: store,
		TTL:   time.Hour,
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)

	session, err := svc.Issue(ctx, "acct-1")
	require.NoError(t, err)
	originalExpiry := session.ExpiresAt

	// Before the halfway point the expiry stays put.
	now = now.Add(20 * time.Minute)
	resolved, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.True(t, resolved.ExpiresAt.Equal(originalExpiry))

	// Past the halfway point the session gets a fresh full TTL.
	now = now.Add(15 * time.Minute)
	resolved, err = svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.True(t, resolved.ExpiresAt.After(originalExpiry))
	assert.True(t, resolved.ExpiresAt.Equal(now.UTC().Add(time.Hour)))
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(ServiceParams{Store: NewMemoryStore()})
	require.NoError(t, err)

	session, err := svc.Issue(ctx, "acct-1")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, session.Token))

	resolved, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, resolved)

	// Revoking again is a no-op.
	require.NoError(t, svc.Revoke(ctx, session.Token))
	require.NoError(t, svc.Revoke(ctx, ""))
}

func TestRevokeAccount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc, err := NewService(ServiceParams{Store: store})
	require.NoError(t, err)

	s1, err := svc.Issue(ctx, "acct-1")
	require.NoError(t, err)
	s2, err := svc.Issue(ctx, "acct-1")
	require.NoError(t, err)
	other, err := svc.Issue(ctx, "acct-2")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAccount(ctx, "acct-1"))

	for _, token := range []string{s1.Token, s2.Token} {
		resolved, err := svc.Resolve(ctx, token)
		require.NoError(t, err)
		assert.Nil(t, resolved)
	}

	resolved, err := svc.Resolve(ctx, other.Token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "acct-2", resolved.AccountID)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()
	svc, err := NewService(ServiceParams{
		Store: store,
		TTL:   time.Hour,
		Clock: func() time.Time { return now },
	})
	require.NoError(t, err)

	_, err = svc.Issue(ctx, "acct-1")
	require.NoError(t, err)
	_, err = svc.Issue(ctx, "acct-2")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	live, err := svc.Issue(ctx, "acct-3")
	require.NoError(t, err)

	removed, err := svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Count())

	resolved, err := svc.Resolve(ctx, live.Token)
	require.NoError(t, err)
	require.NotNil(t, resolved)
}

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
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenGeneratorDefaults(t *testing.T) {
	gen, err := NewTokenGenerator(nil)
	require.NoError(t, err)
	assert.NotNil(t, gen.PublicKey())
	assert.Equal(t, time.Hour, gen.ExpiresIn())
}

func TestGenerateAndVerify(t *testing.T) {
	gen, err := NewTokenGenerator(&TokenGeneratorConfig{
		Issuer:   "test-issuer",
		Audience: []string{"test-audience"},
	})
	require.NoError(t, err)

	session := &Session{Token: "session-token-1", AccountID: "acct-1"}
	bearer, err := gen.Generate(session)
	require.NoError(t, err)
	require.NotEmpty(t, bearer)

	sid, err := gen.Verify(bearer)
	require.NoError(t, err)
	assert.Equal(t, "session-token-1", sid)
}

func TestGenerateRequiresSession(t *testing.T) {
	gen, err := NewTokenGenerator(nil)
	require.NoError(t, err)

	_, err = gen.Generate(nil)
	require.Error(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	gen, err := NewTokenGenerator(nil)
	require.NoError(t, err)

	bearer, err := gen.Generate(&Session{Token: "sid-1", AccountID: "acct-1"})
	require.NoError(t, err)

	_, otherKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	other, err := NewTokenGenerator(&TokenGeneratorConfig{PrivateKey: otherKey})
	require.NoError(t, err)

	_, err = other.Verify(bearer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed")
}

func TestVerifyRejectsExpired(t *testing.T) {
	gen, err := NewTokenGenerator(&TokenGeneratorConfig{
		ExpiresIn: -time.Minute,
	})
	require.NoError(t, err)

	bearer, err := gen.Generate(&Session{Token: "sid-1", AccountID: "acct-1"})
	require.NoError(t, err)

	_, err = gen.Verify(bearer)
	require.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	gen, err := NewTokenGenerator(nil)
	require.NoError(t, err)

	_, err = gen.Verify("not.a.jwt")
	require.Error(t, err)
}

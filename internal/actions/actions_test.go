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

package actions

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

type actionEnv struct {
	svc      *Service
	sessions *session.Service
	accounts *passkey.MemoryAccountStore
	creds    *passkey.MemoryCredentialStore
}

func newActionEnv(t *testing.T) *actionEnv {
	t.Helper()

	creds := passkey.NewMemoryCredentialStore()
	accounts := passkey.NewMemoryAccountStore(creds)

	sessions, err := session.NewService(session.ServiceParams{
		Store: session.NewMemoryStore(),
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Sessions:    sessions,
		Accounts:    accounts,
		Credentials: creds,
	})
	require.NoError(t, err)

	return &actionEnv{svc: svc, sessions: sessions, accounts: accounts, creds: creds}
}

// signIn seeds an account with one credential and issues a session for it.
func (e *actionEnv) signIn(t *testing.T, accountID, email string) string {
	t.Helper()
	ctx := context.Background()

	account := passkey.Account{
		ID:        accountID,
		Name:      "Before",
		Email:     email,
		CreatedAt: time.Now().UTC().Add(-72 * time.Hour),
	}
	cred := &passkey.Credential{
		ID:        []byte(accountID + "-cred"),
		AccountID: accountID,
		PublicKey: []byte{0x01},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.accounts.CreateWithCredential(ctx, account, cred))

	sess, err := e.sessions.Issue(ctx, accountID)
	require.NoError(t, err)
	return sess.Token
}

func TestNewServiceValidation(t *testing.T) {
	env := newActionEnv(t)

	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name:    "missing sessions",
			params:  ServiceParams{Accounts: env.accounts, Credentials: env.creds},
			wantErr: "session service is required",
		},
		{
			name:    "missing accounts",
			params:  ServiceParams{Sessions: env.sessions, Credentials: env.creds},
			wantErr: "account store is required",
		},
		{
			name:    "missing credentials",
			params:  ServiceParams{Sessions: env.sessions, Accounts: env.accounts},
			wantErr: "credential store is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")

	result := env.svc.UpdateProfile(context.Background(), token, "acct-1", "After")
	require.True(t, result.Success)
	require.Nil(t, result.Error)

	data, ok := result.Data.(ProfileData)
	require.True(t, ok)
	assert.Equal(t, "After", data.Name)
	assert.Equal(t, "a@example.com", data.Email)

	account, err := env.accounts.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "After", account.Name)
}

func TestUpdateProfileWithoutSession(t *testing.T) {
	env := newActionEnv(t)

	for _, token := range []string{"", "not-a-real-token"} {
		result := env.svc.UpdateProfile(context.Background(), token, "acct-1", "After")
		require.False(t, result.Success)
		require.NotNil(t, result.Error)
		assert.Equal(t, KindAuthenticationRequired, result.Error.Kind)
		assert.Nil(t, result.Data)
	}
}

func TestUpdateProfileCrossAccountDenied(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")
	env.signIn(t, "acct-2", "b@example.com")

	result := env.svc.UpdateProfile(context.Background(), token, "acct-2", "Hijacked")
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindAuthorizationDenied, result.Error.Kind)

	// Never redirected to operate on the caller's own account.
	account, err := env.accounts.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "Before", account.Name)
	account, err = env.accounts.GetByID(context.Background(), "acct-2")
	require.NoError(t, err)
	assert.Equal(t, "Before", account.Name)
}

func TestUpdateProfileValidation(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")

	tests := []struct {
		name  string
		value string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"too long", strings.Repeat("x", 65)},
		{"control characters", "Alice\nBob"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := env.svc.UpdateProfile(context.Background(), token, "acct-1", tt.value)
			require.False(t, result.Success)
			require.NotNil(t, result.Error)
			assert.Equal(t, KindValidation, result.Error.Kind)
			assert.Equal(t, "name", result.Error.Field)
		})
	}
}

func strPtr(s string) *string { return &s }

func TestUpdateSettings(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")

	result := env.svc.UpdateSettings(context.Background(), token, "acct-1", nil, strPtr("new@example.com"))
	require.True(t, result.Success)

	data, ok := result.Data.(SettingsData)
	require.True(t, ok)
	assert.Equal(t, "acct-1", data.AccountID)
	assert.Equal(t, "Before", data.Name)
	assert.Equal(t, "new@example.com", data.Email)
	assert.False(t, data.EmailVerified)
}

func TestUpdateSettingsNameOnly(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")

	result := env.svc.UpdateSettings(context.Background(), token, "acct-1", strPtr("After"), nil)
	require.True(t, result.Success)

	data, ok := result.Data.(SettingsData)
	require.True(t, ok)
	assert.Equal(t, "After", data.Name)
	assert.Equal(t, "a@example.com", data.Email)

	account, err := env.accounts.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "After", account.Name)
	assert.Equal(t, "a@example.com", account.Email)
}

func TestUpdateSettingsBothFields(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")

	result := env.svc.UpdateSettings(context.Background(), token, "acct-1",
		strPtr("After"), strPtr("new@example.com"))
	require.True(t, result.Success)

	data, ok := result.Data.(SettingsData)
	require.True(t, ok)
	assert.Equal(t, "After", data.Name)
	assert.Equal(t, "new@example.com", data.Email)
}

func TestUpdateSettingsNoFieldsIsNoOp(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")

	result := env.svc.UpdateSettings(context.Background(), token, "acct-1", nil, nil)
	require.True(t, result.Success)

	account, err := env.accounts.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "Before", account.Name)
	assert.Equal(t, "a@example.com", account.Email)
}

func TestUpdateSettingsEmailConflict(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")
	env.signIn(t, "acct-2", "b@example.com")

	result := env.svc.UpdateSettings(context.Background(), token, "acct-1", nil, strPtr("b@example.com"))
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindConflict, result.Error.Kind)
	assert.Equal(t, "email", result.Error.Field)

	// Both accounts keep their addresses.
	a, err := env.accounts.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", a.Email)
	b, err := env.accounts.GetByID(context.Background(), "acct-2")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", b.Email)
}

func TestUpdateSettingsInvalidEmail(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")

	result := env.svc.UpdateSettings(context.Background(), token, "acct-1", nil, strPtr("not-an-email"))
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindValidation, result.Error.Kind)
	assert.Equal(t, "email", result.Error.Field)
}

func TestUpdateSettingsInvalidName(t *testing.T) {
	env := newActionEnv(t)
	token := env.signIn(t, "acct-1", "a@example.com")

	result := env.svc.UpdateSettings(context.Background(), token, "acct-1", strPtr(""), nil)
	require.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, KindValidation, result.Error.Kind)
	assert.Equal(t, "name", result.Error.Field)
}

func TestDeleteAccount(t *testing.T) {
	env := newActionEnv(t)
	ctx := context.Background()
	token := env.signIn(t, "acct-1", "a@example.com")

	result := env.svc.DeleteAccount(ctx, token, "acct-1")
	require.True(t, result.Success)

	data, ok := result.Data.(DeleteData)
	require.True(t, ok)
	assert.True(t, data.Deleted)

	_, err := env.accounts.GetByID(ctx, "acct-1")
	require.ErrorIs(t, err, passkey.ErrAccountNotFound)

	creds, err := env.creds.GetByAccountID(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, creds)

	// The caller's own session died with the account.
	sess, err := env.sessions.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestDeleteAccountCrossAccountDenied(t *testing.T) {
	env := newActionEnv(t)
	ctx := context.Background()
	token := env.signIn(t, "acct-1", "a@example.com")
	env.signIn(t, "acct-2", "b@example.com")

	result := env.svc.DeleteAccount(ctx, token, "acct-2")
	require.False(t, result.Success)
	assert.Equal(t, KindAuthorizationDenied, result.Error.Kind)

	_, err := env.accounts.GetByID(ctx, "acct-2")
	require.NoError(t, err)
}

func TestGetUserStats(t *testing.T) {
	env := newActionEnv(t)
	ctx := context.Background()
	token := env.signIn(t, "acct-1", "a@example.com")

	lastSignIn := time.Now().UTC().Add(-time.Hour)
	account, err := env.accounts.GetByID(ctx, "acct-1")
	require.NoError(t, err)
	account.LastSignInAt = &lastSignIn
	require.NoError(t, env.accounts.Update(ctx, account))

	result := env.svc.GetUserStats(ctx, token, "acct-1")
	require.True(t, result.Success)

	data, ok := result.Data.(StatsData)
	require.True(t, ok)
	assert.Equal(t, 3, data.AccountAgeDays)
	assert.Equal(t, 1, data.Passkeys)
	require.NotNil(t, data.LastSignInAt)
	assert.True(t, data.LastSignInAt.Equal(lastSignIn))
}

func TestGetUserStatsRequiresSession(t *testing.T) {
	env := newActionEnv(t)

	result := env.svc.GetUserStats(context.Background(), "", "acct-1")
	require.False(t, result.Success)
	assert.Equal(t, KindAuthenticationRequired, result.Error.Kind)
}

func TestRevokedSessionIsDenied(t *testing.T) {
	env := newActionEnv(t)
	ctx := context.Background()
	token := env.signIn(t, "acct-1", "a@example.com")

	require.NoError(t, env.sessions.Revoke(ctx, token))

	result := env.svc.UpdateProfile(ctx, token, "acct-1", "After")
	require.False(t, result.Success)
	assert.Equal(t, KindAuthenticationRequired, result.Error.Kind)
}

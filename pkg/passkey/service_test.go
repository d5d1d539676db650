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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		RPID:          "example.com",
		RPDisplayName: "Example Corp",
		RPOrigins:     []string{"https://example.com"},
	}
}

func TestNewService(t *testing.T) {
	creds := NewMemoryCredentialStore()

	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name: "valid params",
			params: ServiceParams{
				Config:      validTestConfig(),
				Accounts:    NewMemoryAccountStore(creds),
				Credentials: creds,
				Ceremonies:  NewMemoryCeremonyStore(),
			},
		},
		{
			name: "missing config",
			params: ServiceParams{
				Accounts:    NewMemoryAccountStore(creds),
				Credentials: creds,
				Ceremonies:  NewMemoryCeremonyStore(),
			},
			wantErr: "config is required",
		},
		{
			name: "missing account store",
			params: ServiceParams{
				Config:      validTestConfig(),
				Credentials: creds,
				Ceremonies:  NewMemoryCeremonyStore(),
			},
			wantErr: "account store is required",
		},
		{
			name: "missing credential store",
			params: ServiceParams{
				Config:     validTestConfig(),
				Accounts:   NewMemoryAccountStore(creds),
				Ceremonies: NewMemoryCeremonyStore(),
			},
			wantErr: "credential store is required",
		},
		{
			name: "missing ceremony store",
			params: ServiceParams{
				Config:      validTestConfig(),
				Accounts:    NewMemoryAccountStore(creds),
				Credentials: creds,
			},
			wantErr: "ceremony store is required",
		},
		{
			name: "invalid config",
			params: ServiceParams{
				Config:      &Config{RPID: "example.com"},
				Accounts:    NewMemoryAccountStore(creds),
				Credentials: creds,
				Ceremonies:  NewMemoryCeremonyStore(),
			},
			wantErr: "invalid config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, svc)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, svc)
			assert.NotNil(t, svc.Config())
		})
	}
}

func TestBeginRegistrationRequiresEmail(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.BeginRegistration(context.Background(), "  ", "Someone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}

func TestFinishRegistrationUnknownCeremony(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.FinishRegistration(context.Background(), "no-such-ceremony", nil)
	require.Error(t, err)
	assert.True(t, IsChallengeInvalid(err))

	_, _, err = env.svc.FinishRegistration(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, IsChallengeInvalid(err))
}

func TestFinishAuthenticationUnknownCeremony(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.svc.FinishAuthentication(context.Background(), "no-such-ceremony", nil)
	require.Error(t, err)
	assert.True(t, IsChallengeInvalid(err))
}

func TestIsRegisteredUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	registered, err := env.svc.IsRegistered(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestCounterAdvanced(t *testing.T) {
	tests := []struct {
		name string
		prev uint32
		next uint32
		want bool
	}{
		{"both zero", 0, 0, true},
		{"first use", 0, 1, true},
		{"normal advance", 5, 6, true},
		{"large jump", 5, 100, true},
		{"equal nonzero", 5, 5, false},
		{"regression", 5, 3, false},
		{"reset to zero", 5, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, counterAdvanced(tt.prev, tt.next))
		})
	}
}

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
	"encoding/base64"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Account is the relying party's user record. An account owns its credentials
// and sessions; deleting the account cascades to both.
type Account struct {
	// ID uniquely identifies the account and doubles as the WebAuthn user
	// handle.
	ID string `json:"id"`

	// Name is the optional display name.
	Name string `json:"name,omitempty"`

	// Email is optional and unique across accounts when present.
	Email string `json:"email,omitempty"`

	// EmailVerifiedAt is set once the email has been verified.
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`

	// CreatedAt is when the account was committed.
	CreatedAt time.Time `json:"created_at"`

	// LastSignInAt is updated on each successful authentication ceremony.
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
}

// DisplayName returns the name to present in authenticator prompts.
func (a Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// Credential is a public-key passkey record stored by the relying party.
type Credential struct {
	// ID is the credential identifier assigned by the authenticator.
	ID []byte `json:"id"`

	// AccountID is the owning account.
	AccountID string `json:"account_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AttestationType indicates the type of attestation used.
	AttestationType string `json:"attestation_type"`

	// Transport lists the transports supported by the authenticator.
	Transport []protocol.AuthenticatorTransport `json:"transport,omitempty"`

	// Flags contains authenticator capability flags.
	Flags CredentialFlags `json:"flags"`

	// Authenticator contains authenticator-specific data, including the
	// monotonic signature counter used for clone detection.
	Authenticator AuthenticatorData `json:"authenticator"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created_at"`

	// LastUsedAt is when the credential last completed authentication.
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// CredentialFlags contains authenticator capability flags.
type CredentialFlags struct {
	UserPresent    bool `json:"user_present"`
	UserVerified   bool `json:"user_verified"`
	BackupEligible bool `json:"backup_eligible"`
	BackupState    bool `json:"backup_state"`
}

// AuthenticatorData contains authenticator-specific information.
type AuthenticatorData struct {
	// AAGUID is the authenticator's model identifier.
	AAGUID []byte `json:"aaguid"`

	// SignCount is the signature counter. Non-decreasing across successful
	// authentications; a regression signals possible credential cloning.
	SignCount uint32 `json:"sign_count"`

	// CloneWarning indicates a potential cloned authenticator.
	CloneWarning bool `json:"clone_warning"`

	// Attachment indicates how the authenticator is attached.
	Attachment protocol.AuthenticatorAttachment `json:"attachment"`
}

// EncodeCredentialID renders a credential ID for URLs, storage keys, and logs.
func EncodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCredentialID reverses EncodeCredentialID.
func DecodeCredentialID(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// ToWebAuthn converts a Credential to the go-webauthn library's type.
func (c *Credential) ToWebAuthn() webauthn.Credential {
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       c.Transport,
		Flags: webauthn.CredentialFlags{
			UserPresent:    c.Flags.UserPresent,
			UserVerified:   c.Flags.UserVerified,
			BackupEligible: c.Flags.BackupEligible,
			BackupState:    c.Flags.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.Authenticator.AAGUID,
			SignCount:    c.Authenticator.SignCount,
			CloneWarning: c.Authenticator.CloneWarning,
			Attachment:   c.Authenticator.Attachment,
		},
	}
}

// FromWebAuthnCredential creates a Credential from the go-webauthn type.
func FromWebAuthnCredential(accountID string, wc *webauthn.Credential) *Credential {
	return &Credential{
		ID:              wc.ID,
		AccountID:       accountID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transport:       wc.Transport,
		Flags: CredentialFlags{
			UserPresent:    wc.Flags.UserPresent,
			UserVerified:   wc.Flags.UserVerified,
			BackupEligible: wc.Flags.BackupEligible,
			BackupState:    wc.Flags.BackupState,
		},
		Authenticator: AuthenticatorData{
			AAGUID:       wc.Authenticator.AAGUID,
			SignCount:    wc.Authenticator.SignCount,
			CloneWarning: wc.Authenticator.CloneWarning,
			Attachment:   wc.Authenticator.Attachment,
		},
		CreatedAt: time.Now().UTC(),
	}
}

// Purpose scopes a ceremony to registration or authentication. A challenge
// issued for one purpose is never accepted by the other flow.
type Purpose string

const (
	// PurposeRegister identifies registration (attestation) ceremonies.
	PurposeRegister Purpose = "register"

	// PurposeAuthenticate identifies authentication (assertion) ceremonies.
	PurposeAuthenticate Purpose = "authenticate"
)

// Ceremony is the ephemeral server-side state of an in-flight challenge.
// It is created when a ceremony begins and consumed exactly once by the
// finish step, whether verification succeeds or fails.
type Ceremony struct {
	// ID is the random ceremony identifier handed to the client.
	ID string `json:"id"`

	// Purpose is the flow this challenge was issued for.
	Purpose Purpose `json:"purpose"`

	// AccountID is the account hint, when the ceremony was initiated for a
	// known account. Empty for discoverable authentication.
	AccountID string `json:"account_id,omitempty"`

	// Staged holds the account to commit on registration success when no
	// account existed for the hint. It is never persisted outside the
	// ceremony record.
	Staged *Account `json:"staged,omitempty"`

	// Data is the go-webauthn session state, including the challenge nonce.
	Data webauthn.SessionData `json:"data"`

	// ExpiresAt bounds the challenge window.
	ExpiresAt time.Time `json:"expires_at"`
}

// webAuthnAccount adapts an Account plus its stored credentials to the
// webauthn.User interface expected by go-webauthn.
type webAuthnAccount struct {
	account     Account
	credentials []*Credential
}

func (a *webAuthnAccount) WebAuthnID() []byte {
	return []byte(a.account.ID)
}

func (a *webAuthnAccount) WebAuthnName() string {
	if a.account.Email != "" {
		return a.account.Email
	}
	return a.account.ID
}

func (a *webAuthnAccount) WebAuthnDisplayName() string {
	return a.account.DisplayName()
}

func (a *webAuthnAccount) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(a.credentials))
	for i, c := range a.credentials {
		creds[i] = c.ToWebAuthn()
	}
	return creds
}

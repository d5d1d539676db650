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

package http

// HeaderCeremonyID is the header name carrying the ceremony identifier
// between the begin and finish steps.
const HeaderCeremonyID = "X-Ceremony-Id"

// BeginRegistrationRequest is the request body for starting registration.
type BeginRegistrationRequest struct {
	// Email is the user's email address (required).
	Email string `json:"email"`

	// DisplayName is the user's display name (optional, defaults to email).
	DisplayName string `json:"display_name,omitempty"`
}

// BeginLoginRequest is the request body for starting authentication.
type BeginLoginRequest struct {
	// Email is the user's email address (optional). When omitted, the
	// discoverable credentials flow is used.
	Email string `json:"email,omitempty"`
}

// RegistrationStatusResponse is the response for registration status.
type RegistrationStatusResponse struct {
	// Registered indicates if the email has registered credentials.
	Registered bool `json:"registered"`
}

// AuthResponse is the response after successful registration or login.
type AuthResponse struct {
	// AccountID identifies the signed-in account.
	AccountID string `json:"account_id"`

	// Email is the account's email address, when set.
	Email string `json:"email,omitempty"`

	// Name is the account's display name, when set.
	Name string `json:"name,omitempty"`

	// Token is a bearer JWT for API clients that do not use cookies.
	// Only present when the handler has a token generator configured.
	Token string `json:"token,omitempty"`
}

// CredentialSummary describes a registered credential without exposing key
// material.
type CredentialSummary struct {
	// ID is the base64url-encoded credential ID.
	ID string `json:"id"`

	// CreatedAt is when the credential was registered (RFC 3339).
	CreatedAt string `json:"created_at"`

	// LastUsedAt is when the credential last signed in (RFC 3339), empty if
	// never used.
	LastUsedAt string `json:"last_used_at,omitempty"`

	// BackedUp indicates whether the passkey is synced across devices.
	BackedUp bool `json:"backed_up"`
}

// ErrorResponse is the response format for errors.
type ErrorResponse struct {
	// Error is the error code.
	Error string `json:"error"`

	// Message is a human-readable error message.
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeChallengeInvalid   = "challenge_invalid"
	ErrorCodeAccountNotFound    = "account_not_found"
	ErrorCodeNoCredentials      = "no_credentials"
	ErrorCodeVerificationFailed = "verification_failed"
	ErrorCodeConflict           = "conflict"
	ErrorCodeInternalError      = "internal_error"
)

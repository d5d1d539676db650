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

package rest

import "time"

// Machine-readable error codes used in ErrorResponse.Error.
const (
	ErrCodeAuthenticationRequired = "authentication_required"
	ErrCodeAuthorizationDenied    = "authorization_denied"
	ErrCodeInvalidRequest         = "invalid_request"
	ErrCodeNotFound               = "not_found"
	ErrCodeConflict               = "conflict"
	ErrCodeInternalError          = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	// Error is the machine-readable error code.
	Error string `json:"error"`

	// Message is the human-readable description.
	Message string `json:"message,omitempty"`
}

// ProfileResponse is the response for GET /api/v1/profile.
type ProfileResponse struct {
	AccountID     string     `json:"account_id"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	LastSignInAt  *time.Time `json:"last_sign_in_at,omitempty"`
}

// SettingsResponse is the response for GET and PUT /api/v1/settings.
type SettingsResponse struct {
	AccountID     string `json:"account_id"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// UpdateSettingsRequest is the request body for PUT /api/v1/settings. Both
// fields are optional; an absent field leaves the current value untouched.
type UpdateSettingsRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// UpdateProfileRequest is the request body for POST /api/v1/actions/update-profile.
type UpdateProfileRequest struct {
	// AccountID is the target account. Must match the session identity.
	AccountID string `json:"account_id"`

	Name string `json:"name"`
}

// TargetAccountRequest is the request body for actions that take only a
// target account (delete-account, user-stats).
type TargetAccountRequest struct {
	AccountID string `json:"account_id"`
}

// CredentialResponse summarizes a registered passkey for the credential
// management endpoints.
type CredentialResponse struct {
	// ID is the base64url-encoded credential ID.
	ID string `json:"id"`

	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
	BackedUp   bool      `json:"backed_up"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

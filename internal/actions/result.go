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

import "time"

// ErrorKind classifies an action failure for machine consumption.
type ErrorKind string

const (
	// KindAuthenticationRequired means no valid session accompanied the call.
	KindAuthenticationRequired ErrorKind = "authentication_required"

	// KindAuthorizationDenied means the session identity is not permitted to
	// act on the target account.
	KindAuthorizationDenied ErrorKind = "authorization_denied"

	// KindValidation means the input was rejected before any write.
	KindValidation ErrorKind = "validation"

	// KindConflict means the write lost to a uniqueness constraint.
	KindConflict ErrorKind = "conflict"

	// KindNotFound means the target record no longer exists.
	KindNotFound ErrorKind = "not_found"

	// KindInternal means an unexpected failure; details stay server-side.
	KindInternal ErrorKind = "internal_error"
)

// Error is the failure arm of a Result.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`

	// Field names the offending input for validation failures.
	Field string `json:"field,omitempty"`
}

// Result is the envelope every action returns. Exactly one of Data and
// Error is set: Success reports which arm the caller should read, so a
// result can never be half-interpreted as both outcome and failure.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// OK wraps a successful payload.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail wraps a failure.
func Fail(kind ErrorKind, message string) Result {
	return Result{Success: false, Error: &Error{Kind: kind, Message: message}}
}

// FailField wraps a validation failure attributed to a single input field.
func FailField(kind ErrorKind, message, field string) Result {
	return Result{Success: false, Error: &Error{Kind: kind, Message: message, Field: field}}
}

// ProfileData is the payload of UpdateProfile.
type ProfileData struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// SettingsData is the payload of UpdateSettings.
type SettingsData struct {
	AccountID     string `json:"account_id"`
	Name          string `json:"name,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// DeleteData is the payload of DeleteAccount.
type DeleteData struct {
	Deleted bool `json:"deleted"`
}

// StatsData is the payload of GetUserStats.
type StatsData struct {
	AccountAgeDays int        `json:"account_age_days"`
	LastSignInAt   *time.Time `json:"last_sign_in_at,omitempty"`
	Passkeys       int        `json:"passkeys"`
}

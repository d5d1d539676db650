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
	"errors"
	"fmt"
)

// Sentinel errors for ceremony and credential operations.
var (
	// ErrAccountNotFound is returned when an account cannot be found.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an account whose email is taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrEmailTaken is returned when an email update collides with another account.
	ErrEmailTaken = errors.New("email already in use")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrCredentialExists is returned when registering a duplicate credential.
	ErrCredentialExists = errors.New("credential already exists")

	// ErrNoCredentials is returned when an account has no registered credentials.
	ErrNoCredentials = errors.New("account has no registered credentials")

	// ErrCeremonyNotFound is returned when ceremony state is missing or was
	// already consumed. Challenges are single-use: a replayed finish request
	// surfaces this error.
	ErrCeremonyNotFound = errors.New("ceremony not found")

	// ErrCeremonyExpired is returned when the challenge window has elapsed.
	ErrCeremonyExpired = errors.New("ceremony expired")

	// ErrCeremonyPurposeMismatch is returned when a registration challenge is
	// presented to the authentication flow or vice versa.
	ErrCeremonyPurposeMismatch = errors.New("ceremony purpose mismatch")

	// ErrChallengeMismatch is returned when the challenge embedded in the
	// client response does not match the issued challenge.
	ErrChallengeMismatch = errors.New("challenge mismatch")

	// ErrOriginMismatch is returned when the client response origin does not
	// match a configured relying-party origin. Possible phishing relay.
	ErrOriginMismatch = errors.New("origin mismatch")

	// ErrRPIDMismatch is returned when the relying-party ID hash in the client
	// response does not match the configured RPID.
	ErrRPIDMismatch = errors.New("relying party mismatch")

	// ErrVerificationFailed is returned when cryptographic verification of an
	// attestation or assertion fails.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrCounterRegression is returned when an assertion presents a signature
	// counter that is not strictly greater than the stored value. Possible
	// cloned authenticator.
	ErrCounterRegression = errors.New("signature counter regression")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// CeremonyError wraps an error with the operation that failed.
type CeremonyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *CeremonyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *CeremonyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *CeremonyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new CeremonyError with the given operation and error.
func NewError(op string, err error) error {
	return &CeremonyError{Op: op, Err: err}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsChallengeInvalid reports whether the error belongs to the challenge
// failure class: missing, expired, consumed, or wrong-purpose ceremony state.
// Clients recover by restarting the ceremony.
func IsChallengeInvalid(err error) bool {
	return errors.Is(err, ErrCeremonyNotFound) ||
		errors.Is(err, ErrCeremonyExpired) ||
		errors.Is(err, ErrCeremonyPurposeMismatch) ||
		errors.Is(err, ErrChallengeMismatch)
}

// IsSecurityEvent reports whether the error should be flagged as
// security-relevant in logs and telemetry.
func IsSecurityEvent(err error) bool {
	return errors.Is(err, ErrOriginMismatch) ||
		errors.Is(err, ErrRPIDMismatch) ||
		errors.Is(err, ErrCounterRegression)
}

// IsUniform reports whether the error must be presented to clients with a
// uniform verification-failure message, so callers cannot probe which check
// rejected them or enumerate registered credentials.
func IsUniform(err error) bool {
	return errors.Is(err, ErrVerificationFailed) ||
		errors.Is(err, ErrCounterRegression) ||
		errors.Is(err, ErrCredentialNotFound) ||
		errors.Is(err, ErrOriginMismatch) ||
		errors.Is(err, ErrRPIDMismatch)
}

// IsAccountNotFound returns true if the error indicates a missing account.
func IsAccountNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

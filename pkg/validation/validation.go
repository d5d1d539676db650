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

// Package validation provides centralized input validation for account
// fields. The ceremony handlers and the action layer both run inputs
// through these checks, so every entry point rejects the same payloads.
package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	// MaxEmailLength bounds email addresses (RFC 5321 path limit).
	MaxEmailLength = 254

	// MaxDisplayNameLength bounds display names, in runes.
	MaxDisplayNameLength = 64
)

// ValidateEmail validates an email address.
// Rejects empty strings, addresses over MaxEmailLength, embedded control
// characters, and anything net/mail cannot parse as a bare address.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	// Check length before parsing (prevent pathological inputs)
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email too long (max %d characters)", MaxEmailLength)
	}

	// Check for control characters and null bytes
	for _, r := range email {
		if r < 32 || r == 127 {
			return fmt.Errorf("email contains control characters")
		}
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("email is not a valid address")
	}

	// Reject display-name forms like "Alice <a@example.com>"; only the
	// bare address is accepted.
	if addr.Address != email {
		return fmt.Errorf("email is not a valid address")
	}

	return nil
}

// ValidateDisplayName validates an account display name.
// Rejects empty or whitespace-only names, names over MaxDisplayNameLength,
// embedded control characters, and invalid UTF-8.
func ValidateDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("name is not valid UTF-8")
	}

	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return fmt.Errorf("name too long (max %d characters)", MaxDisplayNameLength)
	}

	for _, r := range name {
		if r < 32 || r == 127 {
			return fmt.Errorf("name contains control characters")
		}
	}

	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 1000 {
		s = s[:1000] + "...[truncated]"
	}

	return s
}

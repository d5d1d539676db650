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

// Package http provides composable HTTP handlers for passkey ceremonies.
//
// The handlers pair the ceremony service with the session issuer: finishing
// a registration or login ceremony successfully sets the session cookie, so
// clients are signed in by the same request that verified their passkey.
//
// # Usage
//
//	passkeys, _ := passkey.NewService(...)
//	sessions, _ := session.NewService(...)
//	handler := passkeyhttp.NewHandler(passkeys, sessions)
//
//	r.Route("/api/v1/passkey", func(r chi.Router) {
//	    passkeyhttp.MountChi(r, handler)
//	})
//
// # Endpoints
//
//	POST /registration/begin   - Start registration ceremony
//	POST /registration/finish  - Complete registration, sign in
//	GET  /registration/status  - Check if an email has credentials
//	POST /login/begin          - Start authentication ceremony
//	POST /login/finish         - Complete authentication, sign in
//
// # Headers
//
//	X-Ceremony-Id: Ceremony identifier returned by begin operations.
//	               Must be included in finish operations. Each ceremony ID
//	               is valid for exactly one finish attempt.
//
// # Response Format
//
// All responses are JSON. Error responses have the format:
//
//	{
//	    "error": "error_code",
//	    "message": "Human-readable message"
//	}
//
// Ceremony verification failures always map to the uniform
// "verification_failed" code regardless of which check rejected the
// response.
package http

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

// Package passkey implements the WebAuthn registration and authentication
// ceremonies for passwordless sign-in.
//
// The Service wraps go-webauthn and enforces the relying-party invariants on
// top of pluggable persistence: ceremony state is single-use and expires,
// accounts staged during registration are only committed together with their
// first credential, and authentication rejects signature-counter regressions
// as possible cloned authenticators.
//
// Applications provide AccountStore, CredentialStore, and CeremonyStore
// implementations. In-memory stores are included for development and testing;
// the sqlite package provides durable implementations.
package passkey

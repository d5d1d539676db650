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

// Package rest serves the application's HTTP surface: the passkey ceremony
// endpoints, the authenticated account API, and the operational endpoints
// (/healthz, /metrics).
//
// Authorization is enforced in depth. The edge checkpoint
// (SessionMiddleware) runs on every request outside a fixed allow-list and
// turns away unauthenticated traffic before any handler runs. Each
// protected handler then re-derives the decision itself via requireSession,
// and state-changing calls go through the actions package, which resolves
// the session a third time. The layers share only the raw session token,
// carried in the request context by authctx; none of them trusts a
// decision made by an outer layer.
package rest

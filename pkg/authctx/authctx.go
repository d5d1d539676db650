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

// Package authctx carries the raw session token through a request context.
//
// Only the opaque token travels in the context, never a resolved session.
// Each authorization checkpoint resolves the token against the session
// store itself, so revocation takes effect mid-request and no layer trusts
// another layer's decision.
package authctx

import "context"

type contextKey struct{}

// WithToken returns a context carrying the raw session token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

// Token returns the raw session token from the context, if any.
func Token(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(contextKey{}).(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

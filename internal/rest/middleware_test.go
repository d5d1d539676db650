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

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/session"
)

func TestAllowedPath(t *testing.T) {
	tests := []struct {
		path    string
		allowed bool
	}{
		{"/", true},
		{"/signin", true},
		{"/error", true},
		{"/healthz", true},
		{"/metrics", true},
		{"/api/v1/passkey/registration/begin", true},
		{"/api/v1/passkey/login/finish", true},
		{"/static/app.js", true},

		{"/profile", false},
		{"/signin2", false},
		{"/api/v1/profile", false},
		{"/api/v1/passkey", false},
		{"/api/v1/signout", false},
		{"/dashboard", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.allowed, allowedPath(tt.path))
		})
	}
}

func TestEdgeRedirectsBrowserRequests(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/dashboard", reqOpts{})
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/signin?callback=%2Fdashboard", rec.Header().Get("Location"))
}

func TestEdgeReturns401ForAPIRequests(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/profile", reqOpts{})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, ErrCodeAuthenticationRequired, resp.Error)
}

func TestEdgeTreatsJSONAcceptAsAPI(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/dashboard", reqOpts{accept: "application/json"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEdgeRejectsGarbageCookie(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/profile", reqOpts{cookie: "not-a-session"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEdgeRejectsForgedBearerToken(t *testing.T) {
	env := newServerEnv(t)

	// A bearer token signed by a different key must not resolve.
	other, err := session.NewTokenGenerator(nil)
	require.NoError(t, err)
	sess := env.signIn(t, "acct-1", "a@example.com")
	forged, err := other.Generate(&sess)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/profile", reqOpts{bearer: forged})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// The handler checkpoint must stay correct when the edge middleware never
// ran, such as a direct internal invocation of the handler.
func TestHandlerCheckpointIndependentOfEdge(t *testing.T) {
	env := newServerEnv(t)
	sess := env.signIn(t, "acct-1", "a@example.com")

	// No session at all: deny.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	rec := httptest.NewRecorder()
	env.server.ProfileHandler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// With a cookie the handler resolves it on its own.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sess.Token})
	rec = httptest.NewRecorder()
	env.server.ProfileHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Same independence for the mutation checkpoint: calling the action handler
// directly, with no edge middleware and no requireSession, still denies.
func TestMutationCheckpointIndependentOfEdge(t *testing.T) {
	env := newServerEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/actions/user-stats",
		strings.NewReader(`{"account_id":"acct-1"}`))
	rec := httptest.NewRecorder()
	env.server.UserStatsActionHandler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevokedSessionIsDeniedAtEdge(t *testing.T) {
	env := newServerEnv(t)
	sess := env.signIn(t, "acct-1", "a@example.com")

	require.NoError(t, env.sessions.Revoke(context.Background(), sess.Token))

	rec := env.do(t, http.MethodGet, "/api/v1/profile", reqOpts{cookie: sess.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	env := newServerEnv(t)

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := env.server.RecoveryMiddleware()(panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, ErrCodeInternalError, resp.Error)
}

func TestCorrelationHeaderEchoed(t *testing.T) {
	env := newServerEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))

	// Generated when absent.
	rec = env.do(t, http.MethodGet, "/healthz", reqOpts{})
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

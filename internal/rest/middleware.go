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
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/authctx"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// allowedPrefixes bypass all authorization checkpoints. Prefix matching
// covers grouped paths (the ceremony endpoints and their sub-paths);
// everything else on the allow-list is matched exactly.
var allowedPrefixes = []string{
	"/api/v1/passkey/",
	"/static/",
}

// allowedPaths are individual public pages and operational endpoints.
// Keeping the sign-in and error pages here is what prevents redirect loops.
var allowedPaths = []string{
	"/",
	"/signin",
	"/error",
	"/healthz",
	"/metrics",
}

// allowedPath reports whether the path bypasses the authorization
// checkpoints. Every path not on the allow-list defaults to protected.
func allowedPath(path string) bool {
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, exact := range allowedPaths {
		if path == exact {
			return true
		}
	}
	return false
}

// isAPIRequest reports whether a denial should be a structured 401 rather
// than a redirect to the sign-in page.
func isAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// requestToken extracts the raw session token from the request: a bearer
// JWT when one is presented and verifies, otherwise the session cookie.
func (s *Server) requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" && s.tokens != nil {
		if bearer, ok := strings.CutPrefix(auth, "Bearer "); ok {
			token, err := s.tokens.Verify(strings.TrimSpace(bearer))
			if err != nil {
				s.logger.Warn("bearer token rejected", "error", err)
				return ""
			}
			return token
		}
	}
	if token, ok := session.ReadCookie(r); ok {
		return token
	}
	return ""
}

// SessionMiddleware is the edge checkpoint. It resolves the session for
// every request outside the allow-list and denies before any handler runs:
// a redirect to the sign-in page carrying the original path as a callback
// for browser requests, a structured 401 for API requests.
//
// Only the raw token is stashed in the request context. Inner layers
// re-resolve it themselves rather than inheriting the decision made here.
func (s *Server) SessionMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowedPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := s.requestToken(r)
			sess, err := s.sessions.Resolve(r.Context(), token)
			if err != nil {
				s.logger.Error("edge session resolution failed", "error", err)
				writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
				return
			}
			if sess == nil {
				metrics.RecordAuthorizationDenial(metrics.CheckpointEdge)
				s.denyUnauthenticated(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(authctx.WithToken(r.Context(), token)))
		})
	}
}

// denyUnauthenticated writes the deny decision for a request with no valid
// session.
func (s *Server) denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeError(w, http.StatusUnauthorized, ErrCodeAuthenticationRequired, "sign in to continue")
		return
	}
	callback := url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, "/signin?callback="+callback, http.StatusFound)
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write ensures WriteHeader is called.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// LoggingMiddleware logs completed requests with method, path, status, and
// duration.
func (s *Server) LoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			s.logger.Info("request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start).String())
		})
	}
}

// RecoveryMiddleware recovers from panics and returns a 500 error.
func (s *Server) RecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					s.logger.Error("panic recovered",
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec)
					writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "an unexpected error occurred")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

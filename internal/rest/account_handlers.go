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
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jeremyhahn/go-passkey/pkg/authctx"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// requireSession is the handler checkpoint. It re-resolves the raw token
// from the request context instead of trusting that the edge middleware ran,
// so a protected handler stays correct even when invoked through a path the
// middleware never saw. Returns nil after writing the deny response.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) *session.Session {
	token, _ := authctx.Token(r.Context())
	if token == "" {
		token = s.requestToken(r)
	}

	sess, err := s.sessions.Resolve(r.Context(), token)
	if err != nil {
		s.logger.Error("handler session resolution failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return nil
	}
	if sess == nil {
		metrics.RecordAuthorizationDenial(metrics.CheckpointHandler)
		s.denyUnauthenticated(w, r)
		return nil
	}
	return sess
}

// ProfileHandler handles GET /api/v1/profile.
func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	account, err := s.accounts.GetByID(r.Context(), sess.AccountID)
	if err != nil {
		s.accountLookupError(w, err)
		return
	}

	writeJSON(w, ProfileResponse{
		AccountID:     account.ID,
		Name:          account.Name,
		Email:         account.Email,
		EmailVerified: account.EmailVerifiedAt != nil,
		CreatedAt:     account.CreatedAt,
		LastSignInAt:  account.LastSignInAt,
	}, http.StatusOK)
}

// GetSettingsHandler handles GET /api/v1/settings.
func (s *Server) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	account, err := s.accounts.GetByID(r.Context(), sess.AccountID)
	if err != nil {
		s.accountLookupError(w, err)
		return
	}

	writeJSON(w, SettingsResponse{
		AccountID:     account.ID,
		Name:          account.Name,
		Email:         account.Email,
		EmailVerified: account.EmailVerifiedAt != nil,
	}, http.StatusOK)
}

// UpdateSettingsHandler handles PUT /api/v1/settings. The write is
// delegated to the action layer, which authorizes again before persisting.
func (s *Server) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	var req UpdateSettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	token, _ := authctx.Token(r.Context())
	if token == "" {
		token = s.requestToken(r)
	}
	result := s.actions.UpdateSettings(r.Context(), token, sess.AccountID, req.Name, req.Email)
	writeActionResult(w, result)
}

// ListCredentialsHandler handles GET /api/v1/credentials.
func (s *Server) ListCredentialsHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	creds, err := s.passkeys.Credentials(r.Context(), sess.AccountID)
	if err != nil {
		s.logger.Error("listing credentials failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}

	out := make([]CredentialResponse, 0, len(creds))
	for _, cred := range creds {
		out = append(out, CredentialResponse{
			ID:         passkey.EncodeCredentialID(cred.ID),
			CreatedAt:  cred.CreatedAt,
			LastUsedAt: cred.LastUsedAt,
			BackedUp:   cred.Flags.BackupState,
		})
	}
	writeJSON(w, out, http.StatusOK)
}

// RevokeCredentialHandler handles DELETE /api/v1/credentials/{id}.
func (s *Server) RevokeCredentialHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	credID, err := passkey.DecodeCredentialID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid credential id")
		return
	}

	if err := s.passkeys.RevokeCredential(r.Context(), sess.AccountID, credID); err != nil {
		if errors.Is(err, passkey.ErrCredentialNotFound) {
			writeError(w, http.StatusNotFound, ErrCodeNotFound, "credential not found")
			return
		}
		s.logger.Error("revoking credential failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SignOutHandler handles POST /api/v1/signout. The session is revoked
// server-side and the cookie cleared, so any bearer token wrapping the
// same session stops verifying too.
func (s *Server) SignOutHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	if err := s.sessions.Revoke(r.Context(), sess.Token); err != nil {
		s.logger.Error("revoking session failed", "error", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
		return
	}
	session.ClearCookie(w, r)

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) accountLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, passkey.ErrAccountNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "account not found")
		return
	}
	s.logger.Error("account lookup failed", "error", err)
	writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
}

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

	"github.com/jeremyhahn/go-passkey/pkg/authctx"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// The action endpoints pass the raw token straight through to the action
// layer and serialize its envelope verbatim. They deliberately skip
// requireSession: the mutation checkpoint owns the decision, and these
// handlers must not mask it with one of their own. Requests that bypass
// the edge middleware therefore still get an authentication_required
// envelope rather than a free pass.

// UpdateProfileActionHandler handles POST /api/v1/actions/update-profile.
func (s *Server) UpdateProfileActionHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	token, _ := authctx.Token(r.Context())
	if token == "" {
		token = s.requestToken(r)
	}
	writeActionResult(w, s.actions.UpdateProfile(r.Context(), token, req.AccountID, req.Name))
}

// DeleteAccountActionHandler handles POST /api/v1/actions/delete-account.
// A successful deletion also clears the session cookie.
func (s *Server) DeleteAccountActionHandler(w http.ResponseWriter, r *http.Request) {
	var req TargetAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	token, _ := authctx.Token(r.Context())
	if token == "" {
		token = s.requestToken(r)
	}

	result := s.actions.DeleteAccount(r.Context(), token, req.AccountID)
	if result.Success {
		session.ClearCookie(w, r)
	}
	writeActionResult(w, result)
}

// UserStatsActionHandler handles POST /api/v1/actions/user-stats.
func (s *Server) UserStatsActionHandler(w http.ResponseWriter, r *http.Request) {
	var req TargetAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	token, _ := authctx.Token(r.Context())
	if token == "" {
		token = s.requestToken(r)
	}
	writeActionResult(w, s.actions.GetUserStats(r.Context(), token, req.AccountID))
}

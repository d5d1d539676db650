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

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

// Handler provides HTTP handlers for passkey ceremonies. The finish handlers
// issue a session cookie, so a successful ceremony signs the client in.
type Handler struct {
	passkeys *passkey.Service
	sessions *session.Service
	tokens   *session.TokenGenerator
	logger   *slog.Logger
}

// NewHandler creates a new passkey HTTP handler.
func NewHandler(passkeys *passkey.Service, sessions *session.Service) *Handler {
	return &Handler{
		passkeys: passkeys,
		sessions: sessions,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// WithTokenGenerator enables bearer JWTs in auth responses for API clients
// that do not use cookies.
func (h *Handler) WithTokenGenerator(tokens *session.TokenGenerator) *Handler {
	h.tokens = tokens
	return h
}

// BeginRegistration handles POST /registration/begin
//
// Request body:
//
//	{
//	    "email": "user@example.com",
//	    "display_name": "User Name" // optional
//	}
//
// Response: WebAuthn PublicKeyCredentialCreationOptions
// Header: X-Ceremony-Id (ceremony identifier for FinishRegistration)
func (h *Handler) BeginRegistration(w http.ResponseWriter, r *http.Request) {
	var req BeginRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "email is required")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Email
	}

	options, ceremonyID, err := h.passkeys.BeginRegistration(r.Context(), req.Email, displayName)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set(HeaderCeremonyID, ceremonyID)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishRegistration handles POST /registration/finish
//
// Header: X-Ceremony-Id (from BeginRegistration)
// Request body: Attestation response from authenticator
// Response: AuthResponse; a session cookie is set on success.
func (h *Handler) FinishRegistration(w http.ResponseWriter, r *http.Request) {
	ceremonyID := r.Header.Get(HeaderCeremonyID)
	if ceremonyID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeInvalid, "ceremony ID header is required")
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid attestation response")
		return
	}

	account, _, err := h.passkeys.FinishRegistration(r.Context(), ceremonyID, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.signIn(w, r, account)
}

// BeginLogin handles POST /login/begin
//
// Request body:
//
//	{
//	    "email": "user@example.com" // optional
//	}
//
// If no email is provided, the discoverable credentials flow is used.
// Response: WebAuthn PublicKeyCredentialRequestOptions
// Header: X-Ceremony-Id (ceremony identifier for FinishLogin)
func (h *Handler) BeginLogin(w http.ResponseWriter, r *http.Request) {
	var req BeginLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Allow empty body for discoverable credentials
		req = BeginLoginRequest{}
	}

	options, ceremonyID, err := h.passkeys.BeginAuthentication(r.Context(), req.Email)
	if err != nil {
		// An unknown email and an account without passkeys answer
		// identically, so this endpoint cannot be used to enumerate
		// registered addresses.
		if passkey.IsAccountNotFound(err) || errors.Is(err, passkey.ErrNoCredentials) {
			h.writeError(w, http.StatusNotFound, ErrorCodeAccountNotFound, "no passkeys registered for this email")
			return
		}
		h.handleServiceError(w, err)
		return
	}

	w.Header().Set(HeaderCeremonyID, ceremonyID)
	h.writeJSON(w, http.StatusOK, options)
}

// FinishLogin handles POST /login/finish
//
// Header: X-Ceremony-Id (from BeginLogin)
// Request body: Assertion response from authenticator
// Response: AuthResponse; a session cookie is set on success.
func (h *Handler) FinishLogin(w http.ResponseWriter, r *http.Request) {
	ceremonyID := r.Header.Get(HeaderCeremonyID)
	if ceremonyID == "" {
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeInvalid, "ceremony ID header is required")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBody(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, "invalid assertion response")
		return
	}

	account, _, err := h.passkeys.FinishAuthentication(r.Context(), ceremonyID, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.signIn(w, r, account)
}

// RegistrationStatus handles GET /registration/status?email=...
//
// Response: {"registered": true/false}
func (h *Handler) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: false})
		return
	}

	registered, err := h.passkeys.IsRegistered(r.Context(), email)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, RegistrationStatusResponse{Registered: registered})
}

// signIn issues a session for the account, sets the session cookie, and
// writes the auth response.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, account passkey.Account) {
	sess, err := h.sessions.Issue(r.Context(), account.ID)
	if err != nil {
		h.logger.Error("failed to issue session", "error", err, "account_id", account.ID)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
		return
	}

	session.WriteCookie(w, r, sess.Token, sess.ExpiresAt)

	resp := AuthResponse{
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
	}
	if h.tokens != nil {
		bearer, err := h.tokens.Generate(&sess)
		if err != nil {
			h.logger.Error("failed to generate bearer token", "error", err, "account_id", account.ID)
		} else {
			resp.Token = bearer
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// handleServiceError maps ceremony errors to HTTP responses. Verification
// failures are presented uniformly so a caller cannot distinguish which
// check rejected them or probe for registered credentials.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case passkey.IsChallengeInvalid(err):
		h.writeError(w, http.StatusBadRequest, ErrorCodeChallengeInvalid, "challenge is invalid or expired, restart the ceremony")
	case passkey.IsUniform(err):
		h.writeError(w, http.StatusUnauthorized, ErrorCodeVerificationFailed, "verification failed")
	case passkey.IsAccountNotFound(err):
		h.writeError(w, http.StatusNotFound, ErrorCodeAccountNotFound, "account not found")
	case errors.Is(err, passkey.ErrNoCredentials):
		h.writeError(w, http.StatusBadRequest, ErrorCodeNoCredentials, "account has no registered credentials")
	case errors.Is(err, passkey.ErrAccountExists), errors.Is(err, passkey.ErrCredentialExists):
		h.writeError(w, http.StatusConflict, ErrorCodeConflict, "resource already exists")
	default:
		h.logger.Error("ceremony handler error", "error", err)
		h.writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal server error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
	})
}

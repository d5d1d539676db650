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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

type handlerEnv struct {
	router   chi.Router
	sessions *session.Service
	creds    *passkey.MemoryCredentialStore
	rp       virtualwebauthn.RelyingParty
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	cfg := &passkey.Config{
		RPID:          "example.com",
		RPDisplayName: "Example Corp",
		RPOrigins:     []string{"https://example.com"},
	}

	creds := passkey.NewMemoryCredentialStore()
	passkeys, err := passkey.NewService(passkey.ServiceParams{
		Config:      cfg,
		Accounts:    passkey.NewMemoryAccountStore(creds),
		Credentials: creds,
		Ceremonies:  passkey.NewMemoryCeremonyStore(),
	})
	require.NoError(t, err)

	sessions, err := session.NewService(session.ServiceParams{Store: session.NewMemoryStore()})
	require.NoError(t, err)

	tokens, err := session.NewTokenGenerator(nil)
	require.NoError(t, err)

	handler := NewHandler(passkeys, sessions).WithTokenGenerator(tokens)
	router := chi.NewRouter()
	router.Route("/api/v1/passkey", func(r chi.Router) {
		MountChi(r, handler)
	})

	return &handlerEnv{
		router:   router,
		sessions: sessions,
		creds:    creds,
		rp: virtualwebauthn.RelyingParty{
			Name:   cfg.RPDisplayName,
			ID:     cfg.RPID,
			Origin: cfg.RPOrigins[0],
		},
	}
}

func (env *handlerEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

// registerViaHTTP walks the full registration ceremony through the HTTP
// handlers and returns the final response recorder.
func (env *handlerEnv) registerViaHTTP(t *testing.T, email string, authenticator *virtualwebauthn.Authenticator, credential *virtualwebauthn.Credential) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(BeginRegistrationRequest{Email: email})
	beginRec := env.do(t, http.MethodPost, "/api/v1/passkey/registration/begin", string(body), nil)
	require.Equal(t, http.StatusOK, beginRec.Code, beginRec.Body.String())

	ceremonyID := beginRec.Header().Get(HeaderCeremonyID)
	require.NotEmpty(t, ceremonyID)

	var creation struct {
		PublicKey json.RawMessage `json:"publicKey"`
	}
	require.NoError(t, json.Unmarshal(beginRec.Body.Bytes(), &creation))

	parsedOptions, err := virtualwebauthn.ParseAttestationOptions(string(creation.PublicKey))
	require.NoError(t, err)
	attestation := virtualwebauthn.CreateAttestationResponse(env.rp, *authenticator, *credential, *parsedOptions)

	finishRec := env.do(t, http.MethodPost, "/api/v1/passkey/registration/finish", attestation,
		map[string]string{HeaderCeremonyID: ceremonyID})
	if finishRec.Code == http.StatusOK {
		authenticator.AddCredential(*credential)
	}
	return finishRec
}

func TestBeginRegistrationValidation(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/passkey/registration/begin", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/passkey/registration/begin", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, ErrorCodeInvalidRequest, errResp.Error)
}

func TestRegistrationFlowViaHTTP(t *testing.T) {
	env := newHandlerEnv(t)

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	rec := env.registerViaHTTP(t, "new@example.com", &authenticator, &credential)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccountID)
	assert.Equal(t, "new@example.com", resp.Email)
	assert.NotEmpty(t, resp.Token)

	// A session cookie was set and resolves to the new account.
	cookies := rec.Result().Cookies()
	var sessionCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == session.CookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)
	assert.True(t, sessionCookie.HttpOnly)

	resolved, err := env.sessions.Resolve(context.Background(), sessionCookie.Value)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, resp.AccountID, resolved.AccountID)
}

func TestLoginFlowViaHTTP(t *testing.T) {
	env := newHandlerEnv(t)

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	rec := env.registerViaHTTP(t, "login@example.com", &authenticator, &credential)
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := json.Marshal(BeginLoginRequest{Email: "login@example.com"})
	beginRec := env.do(t, http.MethodPost, "/api/v1/passkey/login/begin", string(body), nil)
	require.Equal(t, http.StatusOK, beginRec.Code, beginRec.Body.String())

	ceremonyID := beginRec.Header().Get(HeaderCeremonyID)
	require.NotEmpty(t, ceremonyID)

	var assertionOpts struct {
		PublicKey json.RawMessage `json:"publicKey"`
	}
	require.NoError(t, json.Unmarshal(beginRec.Body.Bytes(), &assertionOpts))

	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(assertionOpts.PublicKey))
	require.NoError(t, err)
	credential.Counter++
	assertion := virtualwebauthn.CreateAssertionResponse(env.rp, authenticator, credential, *parsedOptions)

	finishRec := env.do(t, http.MethodPost, "/api/v1/passkey/login/finish", assertion,
		map[string]string{HeaderCeremonyID: ceremonyID})
	require.Equal(t, http.StatusOK, finishRec.Code, finishRec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(finishRec.Body.Bytes(), &resp))
	assert.Equal(t, "login@example.com", resp.Email)

	// Replaying the finish step fails: the challenge was consumed.
	replayRec := env.do(t, http.MethodPost, "/api/v1/passkey/login/finish", assertion,
		map[string]string{HeaderCeremonyID: ceremonyID})
	assert.Equal(t, http.StatusBadRequest, replayRec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(replayRec.Body.Bytes(), &errResp))
	assert.Equal(t, ErrorCodeChallengeInvalid, errResp.Error)
}

func TestFinishWithoutCeremonyHeader(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/passkey/registration/finish", "{}", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, ErrorCodeChallengeInvalid, errResp.Error)
}

func TestBeginLoginUnknownEmail(t *testing.T) {
	env := newHandlerEnv(t)

	body, _ := json.Marshal(BeginLoginRequest{Email: "nobody@example.com"})
	rec := env.do(t, http.MethodPost, "/api/v1/passkey/login/begin", string(body), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, ErrorCodeAccountNotFound, errResp.Error)
}

// An account whose passkeys have all been removed must answer login/begin
// exactly like an address that was never registered, otherwise the endpoint
// leaks which emails have accounts.
func TestBeginLoginDoesNotRevealRegisteredEmails(t *testing.T) {
	env := newHandlerEnv(t)

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	reg := env.registerViaHTTP(t, "emptied@example.com", &authenticator, &credential)
	require.Equal(t, http.StatusOK, reg.Code)

	var auth AuthResponse
	require.NoError(t, json.Unmarshal(reg.Body.Bytes(), &auth))
	require.NoError(t, env.creds.DeleteByAccountID(context.Background(), auth.AccountID))

	body, _ := json.Marshal(BeginLoginRequest{Email: "unregistered@example.com"})
	unknown := env.do(t, http.MethodPost, "/api/v1/passkey/login/begin", string(body), nil)

	body, _ = json.Marshal(BeginLoginRequest{Email: "emptied@example.com"})
	emptied := env.do(t, http.MethodPost, "/api/v1/passkey/login/begin", string(body), nil)

	assert.Equal(t, http.StatusNotFound, unknown.Code)
	assert.Equal(t, unknown.Code, emptied.Code)
	assert.Equal(t, unknown.Body.String(), emptied.Body.String())
}

func TestRegistrationStatus(t *testing.T) {
	env := newHandlerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/passkey/registration/status?email=nobody@example.com", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status RegistrationStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Registered)

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	reg := env.registerViaHTTP(t, "status@example.com", &authenticator, &credential)
	require.Equal(t, http.StatusOK, reg.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/passkey/registration/status?email=status@example.com", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Registered)

	// No email query param reports unregistered.
	rec = env.do(t, http.MethodGet, "/api/v1/passkey/registration/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Registered)
}

func TestUniformVerificationFailure(t *testing.T) {
	env := newHandlerEnv(t)

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	reg := env.registerViaHTTP(t, "uniform@example.com", &authenticator, &credential)
	require.Equal(t, http.StatusOK, reg.Code)

	body, _ := json.Marshal(BeginLoginRequest{Email: "uniform@example.com"})
	beginRec := env.do(t, http.MethodPost, "/api/v1/passkey/login/begin", string(body), nil)
	require.Equal(t, http.StatusOK, beginRec.Code)
	ceremonyID := beginRec.Header().Get(HeaderCeremonyID)

	var assertionOpts struct {
		PublicKey json.RawMessage `json:"publicKey"`
	}
	require.NoError(t, json.Unmarshal(beginRec.Body.Bytes(), &assertionOpts))
	parsedOptions, err := virtualwebauthn.ParseAssertionOptions(string(assertionOpts.PublicKey))
	require.NoError(t, err)

	// Signed for the wrong origin: rejected with the uniform error.
	phishingRP := virtualwebauthn.RelyingParty{
		Name:   env.rp.Name,
		ID:     env.rp.ID,
		Origin: "https://phish.example.net",
	}
	credential.Counter++
	assertion := virtualwebauthn.CreateAssertionResponse(phishingRP, authenticator, credential, *parsedOptions)

	rec := env.do(t, http.MethodPost, "/api/v1/passkey/login/finish", assertion,
		map[string]string{HeaderCeremonyID: ceremonyID})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, ErrorCodeVerificationFailed, errResp.Error)
	assert.Equal(t, "verification failed", errResp.Message)
}

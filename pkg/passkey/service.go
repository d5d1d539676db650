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

package passkey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/metrics"
)

// Service executes the WebAuthn registration and authentication ceremonies.
type Service struct {
	webauthn   *webauthn.WebAuthn
	config     *Config
	accounts   AccountStore
	creds      CredentialStore
	ceremonies CeremonyStore
	logger     *slog.Logger
	clock      func() time.Time
	configured bool
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the relying-party configuration (required).
	Config *Config

	// Accounts is the account persistence layer (required).
	Accounts AccountStore

	// Credentials is the credential persistence layer (required).
	Credentials CredentialStore

	// Ceremonies is the ephemeral challenge store (required).
	Ceremonies CeremonyStore

	// Logger receives security-relevant ceremony failures. Defaults to
	// slog.Default.
	Logger *slog.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if params.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.Ceremonies == nil {
		return nil, fmt.Errorf("ceremony store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Service{
		webauthn:   wa,
		config:     params.Config,
		accounts:   params.Accounts,
		creds:      params.Credentials,
		ceremonies: params.Ceremonies,
		logger:     logger,
		clock:      clock,
		configured: true,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// BeginRegistration starts the registration ceremony for the given email. If
// no account exists for the email, one is staged inside the ceremony record
// and only committed when the attestation verifies. Existing credential IDs
// are excluded so the client does not re-register the same authenticator.
//
// Returns the credential creation options for the client and the ceremony ID
// the client must present to FinishRegistration.
func (s *Service) BeginRegistration(ctx context.Context, email, displayName string) (*protocol.CredentialCreation, string, error) {
	if !s.configured {
		return nil, "", ErrNotConfigured
	}
	if strings.TrimSpace(email) == "" {
		return nil, "", WrapError("begin registration", fmt.Errorf("email is required"))
	}

	var staged *Account
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if !IsAccountNotFound(err) {
			return nil, "", WrapError("get account by email", err)
		}
		staged = &Account{
			ID:        uuid.NewString(),
			Name:      displayName,
			Email:     email,
			CreatedAt: s.clock().UTC(),
		}
		account = *staged
	}

	existing, err := s.creds.GetByAccountID(ctx, account.ID)
	if err != nil {
		return nil, "", WrapError("get credentials", err)
	}

	var opts []webauthn.RegistrationOption
	if len(existing) > 0 {
		excludeList := make([]protocol.CredentialDescriptor, len(existing))
		for i, cred := range existing {
			excludeList[i] = protocol.CredentialDescriptor{
				Type:         protocol.PublicKeyCredentialType,
				CredentialID: cred.ID,
				Transport:    cred.Transport,
			}
		}
		opts = append(opts, webauthn.WithExclusions(excludeList))
	}

	holder := &webAuthnAccount{account: account, credentials: existing}
	options, sessionData, err := s.webauthn.BeginRegistration(holder, opts...)
	if err != nil {
		return nil, "", WrapError("begin registration", err)
	}

	ceremonyID, err := s.saveCeremony(ctx, PurposeRegister, account.ID, staged, sessionData)
	if err != nil {
		return nil, "", err
	}

	return options, ceremonyID, nil
}

// FinishRegistration completes the registration ceremony. The ceremony record
// is consumed unconditionally before verification, so a replayed finish
// request always fails. On success exactly one credential is stored and, for
// a staged account, the account is committed in the same write.
func (s *Service) FinishRegistration(ctx context.Context, ceremonyID string, response *protocol.ParsedCredentialCreationData) (Account, *Credential, error) {
	if !s.configured {
		return Account{}, nil, ErrNotConfigured
	}

	ceremony, err := s.consumeCeremony(ctx, ceremonyID, PurposeRegister)
	if err != nil {
		s.recordCeremony(metrics.CeremonyRegister, err)
		return Account{}, nil, err
	}

	account := Account{}
	var existing []*Credential
	if ceremony.Staged != nil {
		account = *ceremony.Staged
	} else {
		account, err = s.accounts.GetByID(ctx, ceremony.AccountID)
		if err != nil {
			s.recordCeremony(metrics.CeremonyRegister, err)
			return Account{}, nil, WrapError("get account", err)
		}
		existing, err = s.creds.GetByAccountID(ctx, account.ID)
		if err != nil {
			s.recordCeremony(metrics.CeremonyRegister, err)
			return Account{}, nil, WrapError("get credentials", err)
		}
	}

	holder := &webAuthnAccount{account: account, credentials: existing}
	credential, err := s.webauthn.CreateCredential(holder, ceremony.Data, response)
	if err != nil {
		err = s.classifyVerifyError("create credential", err)
		s.recordCeremony(metrics.CeremonyRegister, err)
		return Account{}, nil, err
	}

	cred := FromWebAuthnCredential(account.ID, credential)
	cred.CreatedAt = s.clock().UTC()

	if ceremony.Staged != nil {
		// Account and first credential commit together; a failed ceremony
		// leaves no partial state behind.
		if err := s.accounts.CreateWithCredential(ctx, account, cred); err != nil {
			s.recordCeremony(metrics.CeremonyRegister, err)
			return Account{}, nil, WrapError("commit account", err)
		}
	} else {
		if err := s.creds.Save(ctx, cred); err != nil {
			s.recordCeremony(metrics.CeremonyRegister, err)
			return Account{}, nil, WrapError("save credential", err)
		}
	}

	s.recordCeremony(metrics.CeremonyRegister, nil)
	return account, cred, nil
}

// BeginAuthentication starts the authentication ceremony. An empty email
// selects the discoverable (account-less) flow, where the authenticator
// itself supplies the credential it holds.
func (s *Service) BeginAuthentication(ctx context.Context, email string) (*protocol.CredentialAssertion, string, error) {
	if !s.configured {
		return nil, "", ErrNotConfigured
	}

	var (
		options     *protocol.CredentialAssertion
		sessionData *webauthn.SessionData
		accountID   string
		err         error
	)

	if strings.TrimSpace(email) == "" {
		options, sessionData, err = s.webauthn.BeginDiscoverableLogin()
	} else {
		account, accErr := s.accounts.GetByEmail(ctx, email)
		if accErr != nil {
			return nil, "", WrapError("get account by email", accErr)
		}
		creds, credErr := s.creds.GetByAccountID(ctx, account.ID)
		if credErr != nil {
			return nil, "", WrapError("get credentials", credErr)
		}
		if len(creds) == 0 {
			return nil, "", ErrNoCredentials
		}
		accountID = account.ID
		holder := &webAuthnAccount{account: account, credentials: creds}
		options, sessionData, err = s.webauthn.BeginLogin(holder)
	}
	if err != nil {
		return nil, "", WrapError("begin authentication", err)
	}

	ceremonyID, err := s.saveCeremony(ctx, PurposeAuthenticate, accountID, nil, sessionData)
	if err != nil {
		return nil, "", err
	}

	return options, ceremonyID, nil
}

// FinishAuthentication completes the authentication ceremony and returns the
// owning account. The assertion's signature counter must be strictly greater
// than the stored value, or both must be zero for authenticators that never
// implement counters; anything else is rejected as a possible clone. The
// stored counter is advanced with a compare-and-set so concurrent replays of
// the same stale assertion cannot both succeed.
func (s *Service) FinishAuthentication(ctx context.Context, ceremonyID string, response *protocol.ParsedCredentialAssertionData) (Account, *Credential, error) {
	if !s.configured {
		return Account{}, nil, ErrNotConfigured
	}

	ceremony, err := s.consumeCeremony(ctx, ceremonyID, PurposeAuthenticate)
	if err != nil {
		s.recordCeremony(metrics.CeremonyAuthenticate, err)
		return Account{}, nil, err
	}

	var validated *webauthn.Credential
	if ceremony.AccountID == "" {
		validated, err = s.webauthn.ValidateDiscoverableLogin(s.discoverableAccountHandler(ctx), ceremony.Data, response)
	} else {
		var account Account
		account, err = s.accounts.GetByID(ctx, ceremony.AccountID)
		if err != nil {
			err = uniformAuthFailure("get account", err)
		} else {
			var creds []*Credential
			creds, err = s.creds.GetByAccountID(ctx, account.ID)
			if err == nil {
				holder := &webAuthnAccount{account: account, credentials: creds}
				validated, err = s.webauthn.ValidateLogin(holder, ceremony.Data, response)
			}
		}
	}
	if err != nil {
		err = s.classifyVerifyError("validate assertion", err)
		s.recordCeremony(metrics.CeremonyAuthenticate, err)
		return Account{}, nil, err
	}

	stored, err := s.creds.GetByCredentialID(ctx, validated.ID)
	if err != nil {
		err = uniformAuthFailure("get credential", err)
		s.recordCeremony(metrics.CeremonyAuthenticate, err)
		return Account{}, nil, err
	}

	prev := stored.Authenticator.SignCount
	next := validated.Authenticator.SignCount
	if validated.Authenticator.CloneWarning || !counterAdvanced(prev, next) {
		err = NewError("validate counter", ErrCounterRegression)
		s.warnSecurity(err, stored)
		s.recordCeremony(metrics.CeremonyAuthenticate, err)
		return Account{}, nil, err
	}

	now := s.clock().UTC()
	stored.Authenticator.SignCount = next
	stored.Authenticator.CloneWarning = false
	stored.Flags = CredentialFlags{
		UserPresent:    validated.Flags.UserPresent,
		UserVerified:   validated.Flags.UserVerified,
		BackupEligible: validated.Flags.BackupEligible,
		BackupState:    validated.Flags.BackupState,
	}
	stored.LastUsedAt = now

	if err := s.creds.UpdateCounter(ctx, stored, prev); err != nil {
		err = WrapError("update counter", err)
		if IsSecurityEvent(err) {
			s.warnSecurity(err, stored)
		}
		s.recordCeremony(metrics.CeremonyAuthenticate, err)
		return Account{}, nil, err
	}

	account, err := s.accounts.GetByID(ctx, stored.AccountID)
	if err != nil {
		s.recordCeremony(metrics.CeremonyAuthenticate, err)
		return Account{}, nil, WrapError("get account", err)
	}

	account.LastSignInAt = &now
	if err := s.accounts.Update(ctx, account); err != nil {
		s.recordCeremony(metrics.CeremonyAuthenticate, err)
		return Account{}, nil, WrapError("record sign-in", err)
	}

	s.recordCeremony(metrics.CeremonyAuthenticate, nil)
	return account, stored, nil
}

// IsRegistered checks whether an account with the given email has any
// registered credentials.
func (s *Service) IsRegistered(ctx context.Context, email string) (bool, error) {
	if !s.configured {
		return false, ErrNotConfigured
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if IsAccountNotFound(err) {
			return false, nil
		}
		return false, WrapError("get account by email", err)
	}

	creds, err := s.creds.GetByAccountID(ctx, account.ID)
	if err != nil {
		return false, WrapError("get credentials", err)
	}
	return len(creds) > 0, nil
}

// Credentials retrieves all credentials for an account.
func (s *Service) Credentials(ctx context.Context, accountID string) ([]*Credential, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}
	return s.creds.GetByAccountID(ctx, accountID)
}

// RevokeCredential removes one of the account's credentials. The credential
// must belong to the account.
func (s *Service) RevokeCredential(ctx context.Context, accountID string, credID []byte) error {
	if !s.configured {
		return ErrNotConfigured
	}

	cred, err := s.creds.GetByCredentialID(ctx, credID)
	if err != nil {
		return WrapError("get credential", err)
	}
	if cred.AccountID != accountID {
		return WrapError("revoke credential", ErrCredentialNotFound)
	}
	return s.creds.Delete(ctx, credID)
}

// counterAdvanced reports whether the assertion counter satisfies the
// strictly-greater-or-both-zero rule. Authenticators that never implement
// counters report zero forever; that weakens clone detection for them and is
// accepted as a known residual risk.
func counterAdvanced(prev, next uint32) bool {
	if prev == 0 && next == 0 {
		return true
	}
	return next > prev
}

// saveCeremony stores challenge state under a fresh random ceremony ID.
func (s *Service) saveCeremony(ctx context.Context, purpose Purpose, accountID string, staged *Account, data *webauthn.SessionData) (string, error) {
	if data == nil {
		return "", WrapError("save ceremony", fmt.Errorf("session data is required"))
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", WrapError("generate ceremony id", err)
	}
	ceremonyID := hex.EncodeToString(idBytes)

	ceremony := &Ceremony{
		ID:        ceremonyID,
		Purpose:   purpose,
		AccountID: accountID,
		Staged:    staged,
		Data:      *data,
		ExpiresAt: s.clock().UTC().Add(s.config.ChallengeTTL),
	}
	if err := s.ceremonies.Save(ctx, ceremony); err != nil {
		return "", WrapError("save ceremony", err)
	}
	return ceremonyID, nil
}

// consumeCeremony retrieves and invalidates ceremony state.
func (s *Service) consumeCeremony(ctx context.Context, ceremonyID string, purpose Purpose) (*Ceremony, error) {
	if strings.TrimSpace(ceremonyID) == "" {
		return nil, NewError("consume ceremony", ErrCeremonyNotFound)
	}
	ceremony, err := s.ceremonies.Consume(ctx, ceremonyID, purpose)
	if err != nil {
		return nil, WrapError("consume ceremony", err)
	}
	return ceremony, nil
}

// discoverableAccountHandler resolves the account for a discoverable
// credential assertion by its user handle.
func (s *Service) discoverableAccountHandler(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		accountID := string(userHandle)
		if strings.TrimSpace(accountID) == "" {
			return nil, ErrAccountNotFound
		}
		account, err := s.accounts.GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		creds, err := s.creds.GetByAccountID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return &webAuthnAccount{account: account, credentials: creds}, nil
	}
}

// classifyVerifyError maps go-webauthn verification failures onto the error
// taxonomy. The distinction is preserved for logs and telemetry; the HTTP
// boundary still presents a uniform message for all of them.
func (s *Service) classifyVerifyError(op string, err error) error {
	detail := protocolErrorDetail(err)
	var mapped error
	switch {
	case strings.Contains(detail, "origin"):
		mapped = ErrOriginMismatch
	case strings.Contains(detail, "rp hash"), strings.Contains(detail, "rp id"), strings.Contains(detail, "relying party"):
		mapped = ErrRPIDMismatch
	case strings.Contains(detail, "challenge"):
		mapped = ErrChallengeMismatch
	default:
		mapped = ErrVerificationFailed
	}

	wrapped := NewError(op, mapped)
	if IsSecurityEvent(wrapped) {
		s.warnSecurity(wrapped, nil)
	} else {
		s.logger.Debug("ceremony verification failed", "op", op, "error", err)
	}
	return wrapped
}

// protocolErrorDetail flattens a go-webauthn protocol error for matching.
func protocolErrorDetail(err error) string {
	var pErr *protocol.Error
	if errors.As(err, &pErr) {
		return strings.ToLower(pErr.Details + " " + pErr.DevInfo)
	}
	return strings.ToLower(err.Error())
}

// uniformAuthFailure collapses store lookups that would otherwise reveal
// whether a credential or account exists.
func uniformAuthFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrCredentialNotFound) {
		return NewError(op, ErrVerificationFailed)
	}
	return WrapError(op, err)
}

func (s *Service) warnSecurity(err error, cred *Credential) {
	attrs := []any{"error", err}
	if cred != nil {
		attrs = append(attrs,
			"credential_id", EncodeCredentialID(cred.ID),
			"account_id", cred.AccountID)
	}
	s.logger.Warn("security-relevant ceremony failure", attrs...)
	metrics.RecordSecurityEvent(securityEventKind(err))
}

func securityEventKind(err error) string {
	switch {
	case errors.Is(err, ErrOriginMismatch):
		return metrics.EventOriginMismatch
	case errors.Is(err, ErrRPIDMismatch):
		return metrics.EventRPIDMismatch
	case errors.Is(err, ErrCounterRegression):
		return metrics.EventCounterRegression
	default:
		return metrics.EventVerificationFailed
	}
}

func (s *Service) recordCeremony(ceremony string, err error) {
	if err == nil {
		metrics.RecordCeremony(ceremony, metrics.StatusSuccess)
		return
	}
	metrics.RecordCeremony(ceremony, metrics.StatusError)
}

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

// Package actions implements the state-changing operations an authenticated
// account may perform on itself, behind the innermost authorization
// checkpoint.
//
// Every action re-resolves the caller's raw session token instead of
// trusting any identity derived by an outer layer, and verifies that the
// resolved account matches the target account before touching storage. The
// ordering inside each action is fixed: authorize, then validate, then
// persist. Results come back in a tagged envelope rather than as Go errors
// so transport layers can serialize the outcome verbatim.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/session"
	"github.com/jeremyhahn/go-passkey/pkg/validation"
)

// Service executes account mutations behind the mutation checkpoint.
type Service struct {
	sessions    *session.Service
	accounts    passkey.AccountStore
	credentials passkey.CredentialStore
	logger      *slog.Logger
	clock       func() time.Time
}

// ServiceParams contains dependencies for creating an action service.
type ServiceParams struct {
	// Sessions resolves and revokes sessions (required).
	Sessions *session.Service

	// Accounts is the account persistence layer (required).
	Accounts passkey.AccountStore

	// Credentials is the credential persistence layer (required).
	Credentials passkey.CredentialStore

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// NewService creates a new action service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if params.Accounts == nil {
		return nil, fmt.Errorf("account store is required")
	}
	if params.Credentials == nil {
		return nil, fmt.Errorf("credential store is required")
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
		sessions:    params.Sessions,
		accounts:    params.Accounts,
		credentials: params.Credentials,
		logger:      logger,
		clock:       clock,
	}, nil
}

// authorize re-derives the caller's identity from the raw token and checks
// it against the target account. The target mismatch is always reported as
// authorization_denied, never as not_found, so probing cannot distinguish
// foreign accounts from missing ones.
func (s *Service) authorize(ctx context.Context, token, targetAccountID string) (*session.Session, *Error) {
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		s.logger.Error("session resolution failed", "error", err)
		return nil, &Error{Kind: KindInternal, Message: "internal error"}
	}
	if sess == nil {
		metrics.RecordAuthorizationDenial(metrics.CheckpointMutation)
		return nil, &Error{Kind: KindAuthenticationRequired, Message: "sign in to continue"}
	}
	if targetAccountID != "" && sess.AccountID != targetAccountID {
		metrics.RecordAuthorizationDenial(metrics.CheckpointMutation)
		s.logger.Warn("cross-account mutation denied",
			"account_id", sess.AccountID)
		return nil, &Error{Kind: KindAuthorizationDenied, Message: "not allowed"}
	}
	return sess, nil
}

// UpdateProfile changes the account's display name.
func (s *Service) UpdateProfile(ctx context.Context, token, targetAccountID, name string) Result {
	sess, denied := s.authorize(ctx, token, targetAccountID)
	if denied != nil {
		return Result{Success: false, Error: denied}
	}

	if err := validation.ValidateDisplayName(name); err != nil {
		return FailField(KindValidation, err.Error(), "name")
	}

	account, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return s.storageFailure("update profile", err)
	}

	account.Name = name
	if err := s.accounts.Update(ctx, account); err != nil {
		return s.storageFailure("update profile", err)
	}

	return OK(ProfileData{Name: account.Name, Email: account.Email})
}

// UpdateSettings changes the account's display name and/or email address.
// Both fields are optional; absent fields are left untouched. Changing the
// email clears any prior verification.
func (s *Service) UpdateSettings(ctx context.Context, token, targetAccountID string, name, email *string) Result {
	sess, denied := s.authorize(ctx, token, targetAccountID)
	if denied != nil {
		return Result{Success: false, Error: denied}
	}

	if name != nil {
		if err := validation.ValidateDisplayName(*name); err != nil {
			return FailField(KindValidation, err.Error(), "name")
		}
	}
	if email != nil {
		if err := validation.ValidateEmail(*email); err != nil {
			return FailField(KindValidation, err.Error(), "email")
		}
	}

	account, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return s.storageFailure("update settings", err)
	}

	if name != nil {
		account.Name = *name
	}
	if email != nil && account.Email != *email {
		account.Email = *email
		account.EmailVerifiedAt = nil
	}
	if err := s.accounts.Update(ctx, account); err != nil {
		if errors.Is(err, passkey.ErrEmailTaken) {
			return FailField(KindConflict, "email already in use", "email")
		}
		return s.storageFailure("update settings", err)
	}

	return OK(SettingsData{
		AccountID:     account.ID,
		Name:          account.Name,
		Email:         account.Email,
		EmailVerified: account.EmailVerifiedAt != nil,
	})
}

// DeleteAccount removes the account, its credentials, and every live
// session. The caller's own session dies with it.
func (s *Service) DeleteAccount(ctx context.Context, token, targetAccountID string) Result {
	sess, denied := s.authorize(ctx, token, targetAccountID)
	if denied != nil {
		return Result{Success: false, Error: denied}
	}

	if err := s.accounts.Delete(ctx, sess.AccountID); err != nil {
		return s.storageFailure("delete account", err)
	}
	if err := s.sessions.RevokeAccount(ctx, sess.AccountID); err != nil {
		s.logger.Error("revoking sessions after account deletion failed",
			"account_id", sess.AccountID, "error", err)
	}

	return OK(DeleteData{Deleted: true})
}

// GetUserStats reports account age, last sign-in, and passkey count. Reads
// pass through the same checkpoint as writes.
func (s *Service) GetUserStats(ctx context.Context, token, targetAccountID string) Result {
	sess, denied := s.authorize(ctx, token, targetAccountID)
	if denied != nil {
		return Result{Success: false, Error: denied}
	}

	account, err := s.accounts.GetByID(ctx, sess.AccountID)
	if err != nil {
		return s.storageFailure("user stats", err)
	}
	creds, err := s.credentials.GetByAccountID(ctx, sess.AccountID)
	if err != nil {
		return s.storageFailure("user stats", err)
	}

	age := int(s.clock().UTC().Sub(account.CreatedAt).Hours() / 24)
	if age < 0 {
		age = 0
	}

	return OK(StatsData{
		AccountAgeDays: age,
		LastSignInAt:   account.LastSignInAt,
		Passkeys:       len(creds),
	})
}

func (s *Service) storageFailure(op string, err error) Result {
	if errors.Is(err, passkey.ErrAccountNotFound) {
		return Fail(KindNotFound, "account not found")
	}
	s.logger.Error(op+" failed", "error", err)
	return Fail(KindInternal, "internal error")
}

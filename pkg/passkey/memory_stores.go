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
	"encoding/hex"
	"sync"
	"time"
)

// MemoryAccountStore is an in-memory implementation of AccountStore.
// This is intended for development and testing only.
type MemoryAccountStore struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
	creds   *MemoryCredentialStore
}

// NewMemoryAccountStore creates a new in-memory account store. The credential
// store is needed so CreateWithCredential and Delete keep accounts and
// credentials consistent under one lock domain.
func NewMemoryAccountStore(creds *MemoryCredentialStore) *MemoryAccountStore {
	return &MemoryAccountStore{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
		creds:   creds,
	}
}

// GetByID retrieves an account by its identifier.
func (s *MemoryAccountStore) GetByID(ctx context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

// GetByEmail retrieves an account by its email address.
func (s *MemoryAccountStore) GetByEmail(ctx context.Context, email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return s.byID[id], nil
}

// CreateWithCredential commits a staged account together with its first
// credential.
func (s *MemoryAccountStore) CreateWithCredential(ctx context.Context, account Account, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[account.ID]; ok {
		return ErrAccountExists
	}
	if account.Email != "" {
		if _, ok := s.byEmail[account.Email]; ok {
			return ErrAccountExists
		}
	}

	if err := s.creds.Save(ctx, cred); err != nil {
		return err
	}

	s.byID[account.ID] = account
	if account.Email != "" {
		s.byEmail[account.Email] = account.ID
	}
	return nil
}

// Update persists profile changes.
func (s *MemoryAccountStore) Update(ctx context.Context, account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[account.ID]
	if !ok {
		return ErrAccountNotFound
	}
	if account.Email != "" {
		if owner, taken := s.byEmail[account.Email]; taken && owner != account.ID {
			return ErrEmailTaken
		}
	}

	if current.Email != "" && current.Email != account.Email {
		delete(s.byEmail, current.Email)
	}
	s.byID[account.ID] = account
	if account.Email != "" {
		s.byEmail[account.Email] = account.ID
	}
	return nil
}

// Delete removes an account and cascades to its credentials.
func (s *MemoryAccountStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}

	if err := s.creds.DeleteByAccountID(ctx, id); err != nil {
		return err
	}

	delete(s.byID, id)
	if account.Email != "" {
		delete(s.byEmail, account.Email)
	}
	return nil
}

// Count returns the number of accounts in the store.
func (s *MemoryAccountStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MemoryCredentialStore is an in-memory implementation of CredentialStore.
// This is intended for development and testing only.
type MemoryCredentialStore struct {
	mu        sync.RWMutex
	byID      map[string]*Credential
	byAccount map[string][]*Credential
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:      make(map[string]*Credential),
		byAccount: make(map[string][]*Credential),
	}
}

// Save stores a new credential.
func (s *MemoryCredentialStore) Save(ctx context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(cred.ID)
	if _, ok := s.byID[key]; ok {
		return ErrCredentialExists
	}

	copied := *cred
	s.byID[key] = &copied
	s.byAccount[cred.AccountID] = append(s.byAccount[cred.AccountID], &copied)
	return nil
}

// GetByAccountID retrieves all credentials for an account.
func (s *MemoryCredentialStore) GetByAccountID(ctx context.Context, accountID string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	creds := s.byAccount[accountID]
	result := make([]*Credential, len(creds))
	for i, c := range creds {
		copied := *c
		result[i] = &copied
	}
	return result, nil
}

// GetByCredentialID retrieves a credential by its ID.
func (s *MemoryCredentialStore) GetByCredentialID(ctx context.Context, credID []byte) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.byID[hex.EncodeToString(credID)]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	copied := *cred
	return &copied, nil
}

// UpdateCounter conditionally advances the stored credential state. The
// compare against prevCount happens under the store lock, mirroring the
// conditional UPDATE the sqlite store issues.
func (s *MemoryCredentialStore) UpdateCounter(ctx context.Context, cred *Credential, prevCount uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(cred.ID)
	current, ok := s.byID[key]
	if !ok {
		return ErrCredentialNotFound
	}
	if current.Authenticator.SignCount != prevCount {
		return ErrCounterRegression
	}

	*current = *cred
	return nil
}

// Delete removes a credential by its ID.
func (s *MemoryCredentialStore) Delete(ctx context.Context, credID []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hex.EncodeToString(credID)
	cred, ok := s.byID[key]
	if !ok {
		return ErrCredentialNotFound
	}

	delete(s.byID, key)
	creds := s.byAccount[cred.AccountID]
	for i, c := range creds {
		if hex.EncodeToString(c.ID) == key {
			s.byAccount[cred.AccountID] = append(creds[:i], creds[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteByAccountID removes all credentials for an account.
func (s *MemoryCredentialStore) DeleteByAccountID(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cred := range s.byAccount[accountID] {
		delete(s.byID, hex.EncodeToString(cred.ID))
	}
	delete(s.byAccount, accountID)
	return nil
}

// Count returns the total number of credentials in the store.
func (s *MemoryCredentialStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// MemoryCeremonyStore is an in-memory implementation of CeremonyStore.
// This is intended for development and testing only.
type MemoryCeremonyStore struct {
	mu         sync.Mutex
	ceremonies map[string]*Ceremony
	clock      func() time.Time
}

// NewMemoryCeremonyStore creates a new in-memory ceremony store.
func NewMemoryCeremonyStore() *MemoryCeremonyStore {
	return &MemoryCeremonyStore{
		ceremonies: make(map[string]*Ceremony),
		clock:      time.Now,
	}
}

// WithClock overrides the store's clock, for tests.
func (s *MemoryCeremonyStore) WithClock(clock func() time.Time) *MemoryCeremonyStore {
	s.clock = clock
	return s
}

// Save stores ceremony state under its ID.
func (s *MemoryCeremonyStore) Save(ctx context.Context, ceremony *Ceremony) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *ceremony
	s.ceremonies[ceremony.ID] = &copied
	return nil
}

// Consume atomically retrieves and deletes ceremony state. The record is
// removed regardless of the outcome so a challenge can never be replayed.
func (s *MemoryCeremonyStore) Consume(ctx context.Context, id string, purpose Purpose) (*Ceremony, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ceremony, ok := s.ceremonies[id]
	if !ok {
		return nil, ErrCeremonyNotFound
	}
	delete(s.ceremonies, id)

	if s.clock().After(ceremony.ExpiresAt) {
		return nil, ErrCeremonyExpired
	}
	if ceremony.Purpose != purpose {
		return nil, ErrCeremonyPurposeMismatch
	}
	return ceremony, nil
}

// DeleteExpired evicts ceremonies past their window.
func (s *MemoryCeremonyStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	removed := 0
	for id, ceremony := range s.ceremonies {
		if now.After(ceremony.ExpiresAt) {
			delete(s.ceremonies, id)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of in-flight ceremonies.
func (s *MemoryCeremonyStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ceremonies)
}

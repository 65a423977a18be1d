package auth_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/loginkit/auth"
)

// memAccountStore is an in-memory AccountStore for tests.
type memAccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*auth.Account
	// credentials keeps the plaintext handed to Create, keyed by account ID.
	credentials map[uuid.UUID]string
	failWith    error
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{
		accounts:    make(map[uuid.UUID]*auth.Account),
		credentials: make(map[uuid.UUID]string),
	}
}

func (s *memAccountStore) FindByID(_ context.Context, id uuid.UUID) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, auth.ErrAccountNotFound
}

func (s *memAccountStore) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, a := range s.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (s *memAccountStore) FindByUsername(_ context.Context, username string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, auth.ErrAccountNotFound
}

func (s *memAccountStore) Create(_ context.Context, account *auth.Account, credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	cp := *account
	s.accounts[account.ID] = &cp
	s.credentials[account.ID] = credential
	return nil
}

func (s *memAccountStore) Update(_ context.Context, account *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *memAccountStore) seed(account *auth.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *account
	s.accounts[account.ID] = &cp
}

func (s *memAccountStore) get(id uuid.UUID) *auth.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		cp := *a
		return &cp
	}
	return nil
}

func (s *memAccountStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// fakeCredentials verifies against a single known login/password pair.
type fakeCredentials struct {
	login    string
	password string
	account  *auth.Account
	calls    int
}

func (f *fakeCredentials) Verify(_ context.Context, login, password string) (*auth.Account, error) {
	f.calls++
	if login == f.login && password == f.password {
		cp := *f.account
		return &cp, nil
	}
	return nil, auth.ErrInvalidCredentials
}

type fakeSessions struct {
	established []uuid.UUID
	failWith    error
}

func (f *fakeSessions) Establish(_ context.Context, accountID uuid.UUID) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.established = append(f.established, accountID)
	return nil
}

type fakeResetInitiator struct {
	logins   []string
	failWith error
}

func (f *fakeResetInitiator) InitiateReset(_ context.Context, login string) error {
	f.logins = append(f.logins, login)
	return f.failWith
}

type fakeResetFinalizer struct {
	applied  map[string]string // login -> new password
	validKey string
}

func (f *fakeResetFinalizer) FinalizeReset(_ context.Context, login, resetKey, newPassword string) error {
	if resetKey != f.validKey {
		return auth.ErrInvalidResetKey
	}
	if f.applied == nil {
		f.applied = make(map[string]string)
	}
	f.applied[login] = newPassword
	return nil
}

type fakeNotifier struct {
	notified []uuid.UUID
	failWith error
}

func (f *fakeNotifier) AccountCreated(_ context.Context, account *auth.Account) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.notified = append(f.notified, account.ID)
	return nil
}

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/alumni-api/internal/domain"
)

// AccountStore is an in-memory accounts table keyed by email.
type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]domain.Account)}
}

func (s *AccountStore) Get(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return &a, nil
}

// Create inserts a; an existing email yields domain.ErrConflict.
func (s *AccountStore) Create(ctx context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.Email]; ok {
		return fmt.Errorf("account exists: %w", domain.ErrConflict)
	}
	s.accounts[a.Email] = *a
	return nil
}

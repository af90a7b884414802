package memory

import (
	"context"
	"strings"
	"time"

	"github.com/yndnr/sessionguard/internal/core/domain"
	"github.com/yndnr/sessionguard/pkg/cmap"
)

// AccountStore keeps accounts in memory.
// Usernames are unique, compared case-insensitively.
type AccountStore struct {
	// Primary index: AccountID -> Account
	accounts *cmap.Map[string, *domain.Account]

	// Secondary index: lowercased username -> AccountID
	usernames *cmap.Map[string, string]

	now func() time.Time
}

// NewAccountStore creates an empty AccountStore.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts:  cmap.New[string, *domain.Account](),
		usernames: cmap.New[string, string](),
		now:       time.Now,
	}
}

func usernameKey(username string) string {
	return strings.ToLower(username)
}

// Create stores a new account.
func (s *AccountStore) Create(_ context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" || account.Username == "" {
		return domain.ErrMissingArgument.WithDetails("account id and username are required")
	}

	key := usernameKey(account.Username)
	if !s.usernames.SetIfAbsent(key, account.ID) {
		return domain.ErrAccountConflict
	}
	if !s.accounts.SetIfAbsent(account.ID, account.Clone()) {
		s.usernames.Delete(key)
		return domain.ErrAccountConflict.WithDetails("account id already exists")
	}
	return nil
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(_ context.Context, id string) (*domain.Account, error) {
	account, ok := s.accounts.Get(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

// GetByUsername retrieves an account by username.
func (s *AccountStore) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	id, ok := s.usernames.Get(usernameKey(username))
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return s.Get(ctx, id)
}

// UpdatePassword replaces the password hash of an account.
func (s *AccountStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	if passwordHash == "" {
		return domain.ErrMissingArgument.WithDetails("password hash is required")
	}

	var found bool
	s.accounts.Update(id, func(cur *domain.Account, exists bool) (*domain.Account, bool) {
		if !exists {
			return nil, false
		}
		next := cur.Clone()
		next.PasswordHash = passwordHash
		next.UpdatedAt = s.now()
		found = true
		return next, true
	})

	if !found {
		return domain.ErrAccountNotFound
	}
	return nil
}

// Count returns the number of accounts.
func (s *AccountStore) Count() int {
	return s.accounts.Count()
}

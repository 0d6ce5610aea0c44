package auth

import (
	"context"
	"sync"
)

// memoryUserStore is the UserStore double for service tests. Usernames and
// emails match exactly, like the users table constraints.
type memoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]User)}
}

func (s *memoryUserStore) GetByUsername(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (s *memoryUserStore) Create(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; ok {
		return ErrDuplicateUsername
	}
	if s.emailTakenLocked(user.Email, "") {
		return ErrDuplicateEmail
	}
	s.users[user.Username] = user
	return nil
}

func (s *memoryUserStore) Update(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; !ok {
		return ErrUserNotFound
	}
	if s.emailTakenLocked(user.Email, user.Username) {
		return ErrDuplicateEmail
	}
	s.users[user.Username] = user
	return nil
}

func (s *memoryUserStore) emailTakenLocked(email, except string) bool {
	for name, u := range s.users {
		if name != except && u.Email == email {
			return true
		}
	}
	return false
}

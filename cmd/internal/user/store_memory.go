package user

import (
	"context"
	"sync"
	"time"

	"bbqmaster/cmd/internal/ids"
)

// InMemoryStore is the dev-only store used when no database is configured.
type InMemoryStore struct {
	mu      sync.Mutex
	byEmail map[string]User
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byEmail: make(map[string]User)}
}

// UpsertByEmail implements Store.
func (s *InMemoryStore) UpsertByEmail(ctx context.Context, p Profile, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	p, err := normalizeProfile(p)
	if err != nil {
		return User{}, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail[p.Email]
	if !ok {
		id, err := ids.NewULID(now)
		if err != nil {
			return User{}, err
		}
		u = User{ID: id, Email: p.Email, CreatedAt: now}
	}
	u.Name = p.Name
	u.ImageURL = p.ImageURL
	u.UpdatedAt = now
	s.byEmail[p.Email] = u
	return u, nil
}

// FindByEmail implements Store.
func (s *InMemoryStore) FindByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// Len returns the number of stored users.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byEmail)
}

var _ Store = (*InMemoryStore)(nil)

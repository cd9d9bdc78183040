package rsvp

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore is the dev-only store used when no database is configured.
type InMemoryStore struct {
	mu   sync.Mutex
	rows map[[2]string]Rsvp
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[[2]string]Rsvp)}
}

// Get implements Store.
func (s *InMemoryStore) Get(ctx context.Context, eventID, userID string) (Rsvp, error) {
	if err := ctx.Err(); err != nil {
		return Rsvp{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rows[[2]string{eventID, userID}]
	if !ok {
		return Rsvp{}, ErrNotFound
	}
	return clone(r), nil
}

// Upsert implements Store.
func (s *InMemoryStore) Upsert(ctx context.Context, r Rsvp) (Rsvp, error) {
	if err := ctx.Err(); err != nil {
		return Rsvp{}, err
	}
	if r.ID == "" || r.EventID == "" || r.UserID == "" || !r.Status.Valid() {
		return Rsvp{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := [2]string{r.EventID, r.UserID}
	if prev, ok := s.rows[key]; ok {
		r.ID = prev.ID
		r.CreatedAt = prev.CreatedAt
	}
	r = clone(r)
	s.rows[key] = r
	return clone(r), nil
}

// Len returns the number of stored RSVPs.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func clone(r Rsvp) Rsvp {
	r.Family = slices.Clone(r.Family)
	r.WillBring = slices.Clone(r.WillBring)
	if r.Family == nil {
		r.Family = []FamilyMember{}
	}
	if r.WillBring == nil {
		r.WillBring = []string{}
	}
	if r.Note != nil {
		n := *r.Note
		r.Note = &n
	}
	return r
}

var _ Store = (*InMemoryStore)(nil)

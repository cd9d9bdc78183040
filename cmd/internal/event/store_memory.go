package event

import (
	"context"
	"slices"
	"sync"
)

// InMemoryStore is the dev-only store used when no database is configured.
// It enforces the same uniqueness rules as the SQL schema.
type InMemoryStore struct {
	mu     sync.Mutex
	byID   map[string]Event
	byCode map[string]string
}

// NewInMemoryStore constructs an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[string]Event),
		byCode: make(map[string]string),
	}
}

// Insert implements Store.
func (s *InMemoryStore) Insert(ctx context.Context, ev Event) (Event, error) {
	const op = "event.Insert"
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	if ev.ID == "" || ev.Title == "" || !ValidShareCode(ev.ShareCode) {
		return Event{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[ev.ID]; ok {
		return Event{}, ConflictError{Op: op, Field: "id"}
	}
	if _, ok := s.byCode[ev.ShareCode]; ok {
		return Event{}, ConflictError{Op: op, Field: FieldShareCode}
	}
	ev.Extras = slices.Clone(ev.Extras)
	if ev.Extras == nil {
		ev.Extras = []string{}
	}
	s.byID[ev.ID] = ev
	s.byCode[ev.ShareCode] = ev.ID
	return ev, nil
}

// GetByShareCode implements Store.
func (s *InMemoryStore) GetByShareCode(ctx context.Context, code string) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byCode[code]
	if !ok {
		return Event{}, ErrNotFound
	}
	ev := s.byID[id]
	ev.Extras = slices.Clone(ev.Extras)
	return ev, nil
}

// Len returns the number of stored events.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

var _ Store = (*InMemoryStore)(nil)

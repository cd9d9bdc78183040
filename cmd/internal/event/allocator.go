package event

import (
	"context"
	"errors"
	"strings"

	"bbqmaster/cmd/internal/retry"
)

const DefaultAllocationAttempts = 5

// Allocator assigns a unique share code to a new event by inserting it with
// random candidates until the store accepts one.
type Allocator struct {
	store    Store
	attempts int
	generate func() string
	observe  func(attempt int, err error)
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator) error

// WithAttempts sets the retry budget.
func WithAttempts(n int) AllocatorOption {
	return func(a *Allocator) error {
		if n <= 0 {
			return ErrInvalidInput
		}
		a.attempts = n
		return nil
	}
}

// WithCodeLength sets the share code length for the default generator.
func WithCodeLength(n int) AllocatorOption {
	return func(a *Allocator) error {
		if n <= 0 {
			return ErrInvalidInput
		}
		a.generate = func() string { return NewShareCode(n) }
		return nil
	}
}

// WithGenerator replaces the candidate generator.
func WithGenerator(fn func() string) AllocatorOption {
	return func(a *Allocator) error {
		if fn == nil {
			return ErrInvalidInput
		}
		a.generate = fn
		return nil
	}
}

// WithObserver registers a callback invoked after every insert attempt.
func WithObserver(fn func(attempt int, err error)) AllocatorOption {
	return func(a *Allocator) error {
		a.observe = fn
		return nil
	}
}

// NewAllocator constructs an Allocator with a budget of DefaultAllocationAttempts.
func NewAllocator(store Store, opts ...AllocatorOption) (*Allocator, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	a := &Allocator{
		store:    store,
		attempts: DefaultAllocationAttempts,
		generate: func() string { return NewShareCode(DefaultShareCodeLength) },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Allocate inserts ev with a fresh share code and returns the stored event.
//
// Only share code collisions are retried. Any other store error is returned
// after the attempt that produced it. When every attempt collides the result
// is an ExhaustedError and no row has been written.
func (a *Allocator) Allocate(ctx context.Context, ev Event) (Event, error) {
	if a == nil || a.store == nil {
		return Event{}, ErrInvalidInput
	}
	if strings.TrimSpace(ev.ID) == "" || strings.TrimSpace(ev.Title) == "" {
		return Event{}, ErrInvalidInput
	}

	out, err := retry.Do(ctx, a.attempts, IsShareCodeCollision, func(ctx context.Context, attempt int) (Event, error) {
		rec := ev
		rec.ShareCode = a.generate()
		created, err := a.store.Insert(ctx, rec)
		if a.observe != nil {
			a.observe(attempt, err)
		}
		return created, err
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			n, _ := retry.Attempts(err)
			return Event{}, ExhaustedError{Attempts: n}
		}
		return Event{}, err
	}
	return out, nil
}

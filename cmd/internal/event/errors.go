package event

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid event input")
	ErrNotFound     = errors.New("event not found")
	ErrConflict     = errors.New("event conflict")

	// ErrShareCodeCollision marks an insert rejected because the candidate
	// share code is already taken. The allocator retries it; callers never
	// see it.
	ErrShareCodeCollision = errors.New("share code collision")

	// ErrShareCodeExhausted is the terminal allocation failure.
	ErrShareCodeExhausted = errors.New("could not allocate a unique share code")
)

// FieldShareCode is the ConflictError field for share code collisions.
const FieldShareCode = "share_code"

// ConflictError reports a uniqueness conflict for a specific logical field.
type ConflictError struct {
	Op    string
	Field string
}

func (e ConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, e.Field)
}

func (e ConflictError) Unwrap() error { return ErrConflict }

// Is lets errors.Is(err, ErrShareCodeCollision) match share code conflicts.
func (e ConflictError) Is(target error) bool {
	return target == ErrShareCodeCollision && e.Field == FieldShareCode
}

// ExhaustedError is returned when every allocation attempt collided.
// It unwraps to ErrShareCodeExhausted and never to ErrShareCodeCollision.
type ExhaustedError struct {
	Attempts int
}

func (e ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts", ErrShareCodeExhausted, e.Attempts)
}

func (e ExhaustedError) Unwrap() error { return ErrShareCodeExhausted }

// IsShareCodeCollision reports whether err is a retriable share code collision.
func IsShareCodeCollision(err error) bool { return errors.Is(err, ErrShareCodeCollision) }

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

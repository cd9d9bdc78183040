package rsvp

import "errors"

var (
	ErrInvalidInput = errors.New("invalid rsvp input")
	ErrNotFound     = errors.New("rsvp not found")
)

// ValidationError is a user-facing input error. Message is safe to show.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// ErrStatusRequired is returned by Save when no status was chosen.
var ErrStatusRequired = &ValidationError{Field: "status", Message: "Please choose an RSVP option."}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

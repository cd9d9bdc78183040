// Package retry provides a bounded retry combinator driven by an explicit
// retriable-error predicate.
package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
)

// ErrExhausted is the kind of every *ExhaustedError.
var ErrExhausted = errors.New("retry budget exhausted")

// ExhaustedError reports that every attempt failed with a retriable error.
//
// It unwraps to ErrExhausted only; Last is kept for logging and is not part of
// the error chain.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts", ErrExhausted, e.Attempts)
}

func (e *ExhaustedError) Unwrap() error { return ErrExhausted }

// Op is one attempt. attempt is 1-based.
type Op[T any] func(ctx context.Context, attempt int) (T, error)

// Do runs op until it succeeds, fails with an error for which retriable
// returns false, or maxAttempts retriable failures have been observed.
//
// Non-retriable errors are returned as-is after the attempt that produced them.
// Attempts run back to back; there is no delay between them.
func Do[T any](ctx context.Context, maxAttempts int, retriable func(error) bool, op Op[T]) (T, error) {
	var zero T
	if op == nil {
		return zero, errors.New("retry: nil op")
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if retriable == nil {
		retriable = func(error) bool { return false }
	}

	attempts := 0
	var lastRetriable error

	res, err := backoff.Retry(ctx, func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}
		attempts++
		v, err := op(ctx, attempts)
		if err == nil {
			return v, nil
		}
		if !retriable(err) {
			lastRetriable = nil
			return zero, backoff.Permanent(err)
		}
		lastRetriable = err
		return zero, err
	},
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(uint(maxAttempts)),
	)
	if err == nil {
		return res, nil
	}
	if lastRetriable != nil && attempts >= maxAttempts {
		return zero, &ExhaustedError{Attempts: attempts, Last: lastRetriable}
	}
	return zero, err
}

// Attempts extracts the attempt count from an exhaustion error.
func Attempts(err error) (int, bool) {
	var ee *ExhaustedError
	if errors.As(err, &ee) {
		return ee.Attempts, true
	}
	return 0, false
}

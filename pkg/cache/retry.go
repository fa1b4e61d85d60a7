package cache

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks a transient failure, such as a backend that is not
// reachable yet.
type RetryableError struct{ Err error }

// Retryable marks err as transient. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err was marked with [Retryable].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RetryDelay is the wait before the first retry; it doubles after each one.
var RetryDelay = time.Second

// retryAttempts bounds [RetryWithBackoff], first call included.
const retryAttempts = 3

// RetryWithBackoff calls fn until it succeeds, returns an error not marked
// [Retryable], or has been called three times. Once attempts run out the
// last underlying error is returned without its retry marker.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	delay := RetryDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		var re *RetryableError
		if err == nil || !errors.As(err, &re) {
			return err
		}
		if attempt == retryAttempts {
			return re.Err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

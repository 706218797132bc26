package util

import (
	"context"
	"time"
)

// Retry calls fn up to maxAttempts times with a fixed delay between
// attempts. It returns nil on the first successful call, or the last error
// if all attempts fail. The function respects context cancellation between
// retries.
func Retry(ctx context.Context, maxAttempts int, delay time.Duration, fn func() error) error {
	return RetryIf(ctx, maxAttempts, delay, func(error) bool { return true }, fn)
}

// RetryIf is Retry with a retryability predicate: an error for which
// retryable returns false is returned immediately without consuming the
// remaining attempts. Used to stop retrying authentication failures that
// will never succeed on a repeat call.
func RetryIf(ctx context.Context, maxAttempts int, delay time.Duration, retryable func(error) bool, fn func() error) error {
	var err error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return err
}

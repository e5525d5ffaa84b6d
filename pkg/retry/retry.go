// Package retry implements the bounded retry policy for read paths.
//
// Classification is a match on the typed error code, never on message text.
// Authentication and authorization failures are terminal for a request, and
// rate-limited responses are never retried automatically; only transient
// infrastructure failures are worth another attempt.
package retry

import (
	"context"
	"time"

	dErrors "punchgate/pkg/domain-errors"
)

// DefaultAttempts bounds retries on read paths. Endpoints observed needing
// more resilience can pass their own bound to Do.
const DefaultAttempts = 2

// Retryable reports whether the error is transient enough to retry.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeUnavailable, dErrors.CodeInternal:
		return true
	default:
		return false
	}
}

// Do runs fn up to attempts times, backing off between tries. It stops early
// on success, on a non-retryable error, or when ctx is cancelled, and always
// surfaces the last failure.
func Do(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}
		last = fn(ctx)
		if last == nil || !Retryable(last) {
			return last
		}
		if i < attempts-1 && backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return last
			}
		}
	}
	return last
}

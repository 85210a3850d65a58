package utils

import (
	"context"
	"fmt"
	"time"
)

var sleep = time.Sleep

// WaitFor blocks for d or until ctx is done.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sleep(d)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// RetryPolicy describes how many times an operation is attempted and how long to wait in between.
// The delay doubles after every failed attempt.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries every error.
	Retryable func(error) bool
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the attempts are exhausted.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(attempt int) (T, error)) (T, error) {
	var zero T

	attempts := policy.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if policy.Retryable != nil && !policy.Retryable(err) {
			return zero, err
		}

		if attempt == attempts {
			break
		}

		delay := policy.BaseDelay * time.Duration(1<<(attempt-1))
		if err := WaitFor(ctx, delay); err != nil {
			return zero, err
		}
	}

	if attempts == 1 {
		return zero, lastErr
	}

	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

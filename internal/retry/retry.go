// Package retry implements the bounded retry policy applied to idempotent
// provider calls (message listing, fetching, token refresh). Non-idempotent
// calls such as the authorization code exchange never go through it.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy bounds how often and how fast an operation is retried.
type Policy struct {
	Attempts int
	Backoff  time.Duration
}

// stopError marks an error as terminal so Do returns it without retrying.
type stopError struct {
	err error
}

func (s *stopError) Error() string { return s.err.Error() }
func (s *stopError) Unwrap() error { return s.err }

// Stop wraps an error so Do will not retry it.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// Do runs fn up to p.Attempts times with a fixed backoff between attempts.
// It stops early on context cancellation or when fn returns a Stop-wrapped
// error, and returns the last error observed.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	return err
}

package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/odyssey-erp/ledgercore/internal/shared"
)

// DefaultMaxAttempts bounds transaction retries when no policy is configured.
const DefaultMaxAttempts = 3

// RetryPolicy bounds how often a conflicting transaction is re-run.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// OnRetry is called before each re-run with the error that caused it.
	OnRetry func(err error, attempt int)
}

// DefaultRetryPolicy returns the policy used by the stores.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
	}
}

// Retry runs fn until it succeeds, fails with an error retryable rejects, or
// the attempts are exhausted. Exhaustion surfaces as shared.ErrConflict.
func Retry(ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	bo := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		bo.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		bo.MaxInterval = policy.MaxInterval
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(policy.MaxAttempts)),
		backoff.WithNotify(func(err error, _ time.Duration) {
			if policy.OnRetry != nil {
				policy.OnRetry(err, attempt)
			}
		}),
	)
	if err == nil {
		return nil
	}
	if retryable(err) && !errors.Is(err, shared.ErrConflict) {
		return shared.ErrConflict.Wrap(err)
	}
	return err
}

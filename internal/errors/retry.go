package errors

import (
	"context"
	"errors"
	"time"
)

// RetryConfig controls retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including first)
	BaseDelay   time.Duration // Initial delay between retries
	MaxDelay    time.Duration // Maximum delay cap
	Multiplier  float64       // Backoff multiplier per attempt
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Retry executes fn with exponential backoff. Only transient errors are
// retried; validation and other permanent failures abort immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Wrap(err, ErrCodeBackendTimeout, "retry cancelled")
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var ee *EngineError
		if errors.As(lastErr, &ee) && !ee.Retryable {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return Wrap(ctx.Err(), ErrCodeBackendTimeout, "retry cancelled")
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return lastErr
}

// RetryWithResult executes fn with exponential backoff and returns its result.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	err := Retry(ctx, cfg, func() error {
		var ferr error
		result, ferr = fn()
		return ferr
	})
	return result, err
}

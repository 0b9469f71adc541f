package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	// Given an error code and message
	// When creating a new error
	err := New(ErrCodeInvalidQuery, "query is malformed")

	// Then category, severity and retryability derive from the code
	assert.Equal(t, ErrCodeInvalidQuery, err.Code)
	assert.Equal(t, CategoryValidation, err.Category)
	assert.Equal(t, SeverityError, err.Severity)
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Error(), "ERR_403_INVALID_QUERY")
}

func TestWrap(t *testing.T) {
	// Given an underlying error
	cause := fmt.Errorf("connection refused")

	// When wrapping it with a backend code
	err := Wrap(cause, ErrCodeBackendUnavailable, "vector backend unreachable")

	// Then the wrapped error is retryable and unwraps to the cause
	assert.True(t, err.Retryable)
	assert.Equal(t, CategoryBackend, err.Category)
	assert.ErrorIs(t, err, cause)
}

func TestWithContext(t *testing.T) {
	err := New(ErrCodeStoreIO, "write failed").
		WithContext("chunk_id", "abc-123").
		WithContext("attempt", 2)

	assert.Equal(t, "abc-123", err.Context["chunk_id"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout is retryable", New(ErrCodeBackendTimeout, "timeout"), true},
		{"unavailable is retryable", New(ErrCodeBackendUnavailable, "down"), true},
		{"validation is not retryable", New(ErrCodeQueryEmpty, "empty"), false},
		{"corrupt cache is not retryable", New(ErrCodeCacheCorrupt, "bad entry"), false},
		{"plain error is not retryable", errors.New("plain"), false},
		{"wrapped retryable survives fmt wrapping", fmt.Errorf("outer: %w", New(ErrCodeBackendTimeout, "t")), true},
		{"nil is not retryable", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeSearchFailed, GetCode(New(ErrCodeSearchFailed, "boom")))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	// Given a function that fails twice with transient errors
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return New(ErrCodeBackendTimeout, "slow backend")
		}
		return nil
	}

	// When retrying with short delays
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2.0}
	err := Retry(context.Background(), cfg, fn)

	// Then the final attempt succeeds
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	// Given a function that always fails with a validation error
	attempts := 0
	fn := func() error {
		attempts++
		return New(ErrCodeInvalidQuery, "malformed")
	}

	// When retrying
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2.0}
	err := Retry(context.Background(), cfg, fn)

	// Then it aborts after the first attempt
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	fn := func() error {
		attempts++
		return New(ErrCodeBackendUnavailable, "still down")
	}

	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2.0}
	err := Retry(context.Background(), cfg, fn)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, ErrCodeBackendUnavailable, GetCode(err))
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryConfig(), func() error {
		return New(ErrCodeBackendTimeout, "never runs to success")
	})

	require.Error(t, err)
	assert.Equal(t, ErrCodeBackendTimeout, GetCode(err))
}

func TestRetryWithResult(t *testing.T) {
	attempts := 0
	result, err := RetryWithResult(context.Background(),
		RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0},
		func() (int, error) {
			attempts++
			if attempts == 1 {
				return 0, New(ErrCodeBackendTimeout, "transient")
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

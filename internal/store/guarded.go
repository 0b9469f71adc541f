package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/seekly/seekly/internal/errors"
)

// GuardConfig controls the circuit breaker and timeouts wrapped around a
// vector backend.
type GuardConfig struct {
	Name             string        // breaker name for logging
	SearchTimeout    time.Duration // per-search deadline
	UpsertTimeout    time.Duration // per-upsert deadline
	FailureThreshold uint32        // consecutive failures before opening
	OpenDuration     time.Duration // how long the breaker stays open
	Retry            errors.RetryConfig
}

// DefaultGuardConfig returns guard defaults tuned for a local vector backend.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name:             "vector-backend",
		SearchTimeout:    5 * time.Second,
		UpsertTimeout:    30 * time.Second,
		FailureThreshold: 5,
		OpenDuration:     15 * time.Second,
		Retry: errors.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Multiplier:  2.0,
		},
	}
}

// GuardedVectorSearcher wraps a VectorSearcher with a circuit breaker,
// per-call timeouts, and transient-only retry. When the breaker is open,
// calls fail fast with a retryable backend error so the search layer can
// degrade to lexical-only results instead of blocking.
type GuardedVectorSearcher struct {
	inner   VectorSearcher
	cfg     GuardConfig
	breaker *gobreaker.CircuitBreaker[[]*VectorResult]
	writeCB *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

var _ VectorSearcher = (*GuardedVectorSearcher)(nil)

// NewGuardedVectorSearcher wraps inner with the given guard configuration.
func NewGuardedVectorSearcher(inner VectorSearcher, cfg GuardConfig, logger *slog.Logger) *GuardedVectorSearcher {
	if logger == nil {
		logger = slog.Default()
	}

	onStateChange := func(name string, from, to gobreaker.State) {
		logger.Warn("circuit_breaker_state_change",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	}
	readyToTrip := func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.FailureThreshold
	}

	return &GuardedVectorSearcher{
		inner: inner,
		cfg:   cfg,
		breaker: gobreaker.NewCircuitBreaker[[]*VectorResult](gobreaker.Settings{
			Name:          cfg.Name + "-read",
			Timeout:       cfg.OpenDuration,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
		}),
		writeCB: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:          cfg.Name + "-write",
			Timeout:       cfg.OpenDuration,
			ReadyToTrip:   readyToTrip,
			OnStateChange: onStateChange,
		}),
		logger: logger,
	}
}

// Search runs a guarded nearest-neighbor search.
func (g *GuardedVectorSearcher) Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error) {
	return errors.RetryWithResult(ctx, g.cfg.Retry, func() ([]*VectorResult, error) {
		results, err := g.breaker.Execute(func() ([]*VectorResult, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.cfg.SearchTimeout)
			defer cancel()
			return g.inner.Search(callCtx, query, k, filter)
		})
		return results, g.classify(err, "vector search")
	})
}

// Upsert runs a guarded vector write.
func (g *GuardedVectorSearcher) Upsert(ctx context.Context, ids []string, vectors [][]float32, metadata []Metadata) error {
	return errors.Retry(ctx, g.cfg.Retry, func() error {
		_, err := g.writeCB.Execute(func() (struct{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.cfg.UpsertTimeout)
			defer cancel()
			return struct{}{}, g.inner.Upsert(callCtx, ids, vectors, metadata)
		})
		return g.classify(err, "vector upsert")
	})
}

// Delete runs a guarded vector delete.
func (g *GuardedVectorSearcher) Delete(ctx context.Context, ids []string) error {
	return errors.Retry(ctx, g.cfg.Retry, func() error {
		_, err := g.writeCB.Execute(func() (struct{}, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.cfg.UpsertTimeout)
			defer cancel()
			return struct{}{}, g.inner.Delete(callCtx, ids)
		})
		return g.classify(err, "vector delete")
	})
}

// Count delegates to the wrapped backend.
func (g *GuardedVectorSearcher) Count() int { return g.inner.Count() }

// Close delegates to the wrapped backend.
func (g *GuardedVectorSearcher) Close() error { return g.inner.Close() }

// classify maps raw backend failures to structured codes. Dimension
// mismatches are caller bugs and must not trip retries; breaker-open and
// timeout errors are transient so the search layer can degrade gracefully.
func (g *GuardedVectorSearcher) classify(err error, op string) error {
	if err == nil {
		return nil
	}

	var dimErr ErrDimensionMismatch
	if errors.As(err, &dimErr) {
		return errors.Wrap(err, errors.ErrCodeDimensionMismatch, op+" rejected")
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(err, errors.ErrCodeBackendUnavailable, op+" circuit open")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrCodeBackendTimeout, op+" timed out")
	}

	var ee *errors.EngineError
	if errors.As(err, &ee) {
		return err
	}
	return errors.Wrap(err, errors.ErrCodeBackendUnavailable, op+" failed")
}

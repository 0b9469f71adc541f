package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/seekly/seekly/internal/config"
	"github.com/seekly/seekly/internal/metrics"
)

// MultiLevel coordinates the three tiers. Lookup order is L1 exact, L2
// exact, L3 semantic. Hot L2 entries promote to L1, L3 hits write a copy
// into L2, and low-confidence results are never written at all. Each tier
// locks independently and hands out entry copies, so promotion decisions
// read private snapshots; a promotion inserts into the upper tier before
// removing from the lower one so a concurrent reader sees one state or the
// other, never neither.
type MultiLevel struct {
	l1 *L1Cache
	l2 ExactTier
	l3 *SemanticL3

	l1MinConfidence    float64
	minWriteConfidence float64
	promoteHitsPerHour float64
	defaultTTL         time.Duration

	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option adjusts MultiLevel construction.
type Option func(*MultiLevel)

// WithClock injects a time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *MultiLevel) { c.now = now }
}

// WithMetrics wires cache counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *MultiLevel) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *MultiLevel) { c.logger = logger }
}

// WithL2 replaces the warm tier, e.g. with a Redis-backed one.
func WithL2(tier ExactTier) Option {
	return func(c *MultiLevel) { c.l2 = tier }
}

// New builds the cache from config. When cfg.Redis.Addr is set the caller
// is expected to pass WithL2 with a connected RedisL2; New itself never
// dials out.
func New(cfg config.CacheConfig, opts ...Option) (*MultiLevel, error) {
	c := &MultiLevel{
		l1MinConfidence:    cfg.L1MinConfidence,
		minWriteConfidence: cfg.MinWriteConfidence,
		promoteHitsPerHour: cfg.PromoteHitsPerHour,
		defaultTTL:         cfg.L2TTL,
		logger:             slog.Default(),
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	l1, err := NewL1Cache(cfg.L1Size, c.now)
	if err != nil {
		return nil, err
	}
	c.l1 = l1
	if c.l2 == nil {
		c.l2 = NewMemoryL2(cfg.L2Size, c.now)
	}
	c.l3 = NewSemanticL3(cfg.L3Size, cfg.L3SimilarityThreshold, c.now)
	return c, nil
}

// Get looks the key up tier by tier. vec may be nil, which skips the
// semantic tier. The returned value is the cached payload.
func (c *MultiLevel) Get(ctx context.Context, key string, vec []float32) ([]byte, Tier, bool) {
	if e, ok := c.l1.Get(key); ok {
		c.countHit(TierL1)
		return e.Value, TierL1, true
	}

	if e, ok, err := c.l2.Get(ctx, key); err != nil {
		c.logger.Warn("cache_l2_read_failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	} else if ok {
		c.countHit(TierL2)
		c.maybePromoteToL1(ctx, e)
		return e.Value, TierL2, true
	}

	if e, sim, ok := c.l3.Get(vec); ok {
		c.countHit(TierL3)
		c.promoteToL2(ctx, e, sim)
		return e.Value, TierL3, true
	}

	if c.metrics != nil {
		c.metrics.CacheMissTotal.Inc()
	}
	return nil, TierNone, false
}

// maybePromoteToL1 moves a hot, trusted L2 entry into L1. The L1 victim, if
// any, is demoted back to L2 rather than dropped.
func (c *MultiLevel) maybePromoteToL1(ctx context.Context, e *Entry) {
	if e.HitsPerHour(c.now()) <= c.promoteHitsPerHour || e.Confidence < c.l1MinConfidence {
		return
	}

	victim, ok := c.l1.Add(e.Clone())
	if !ok {
		return
	}
	if _, err := c.l2.Delete(ctx, e.Key); err != nil {
		c.logger.Warn("cache_promotion_cleanup_failed",
			slog.String("key", e.Key),
			slog.String("error", err.Error()))
	}
	if victim != nil {
		if err := c.l2.Set(ctx, victim); err != nil {
			c.logger.Warn("cache_demotion_failed",
				slog.String("key", victim.Key),
				slog.String("error", err.Error()))
		}
	}
	if c.metrics != nil {
		c.metrics.CachePromotions.WithLabelValues("l2_to_l1").Inc()
	}
	c.logger.Debug("cache_promote",
		slog.String("key", e.Key),
		slog.String("direction", "l2_to_l1"))
}

// promoteToL2 writes a copy of an L3 hit into L2 so near-identical repeat
// queries get an exact hit next time.
func (c *MultiLevel) promoteToL2(ctx context.Context, e *Entry, sim float64) {
	if err := c.l2.Set(ctx, e.Clone()); err != nil {
		c.logger.Warn("cache_promotion_failed",
			slog.String("key", e.Key),
			slog.String("error", err.Error()))
		return
	}
	if c.metrics != nil {
		c.metrics.CachePromotions.WithLabelValues("l3_to_l2").Inc()
	}
	c.logger.Debug("cache_promote",
		slog.String("key", e.Key),
		slog.String("direction", "l3_to_l2"),
		slog.Float64("similarity", sim))
}

// Set writes a result into the cache. Low-confidence results are rejected
// outright. High-confidence entries land in L1, the rest in L2; anything
// with a vector is additionally stored in L3. Returns false when the write
// was gated off.
func (c *MultiLevel) Set(ctx context.Context, key string, value []byte, ttl time.Duration, vec []float32, confidence float64, tags []string) bool {
	if confidence < c.minWriteConfidence {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	now := c.now()
	e := &Entry{
		Key:        key,
		Value:      value,
		CreatedAt:  now,
		TTL:        ttl,
		Vector:     vec,
		Confidence: confidence,
		Tags:       tags,
		SizeBytes:  len(value) + 4*len(vec),
	}

	stored := false
	if confidence >= c.l1MinConfidence {
		if victim, ok := c.l1.Add(e.Clone()); ok {
			stored = true
			if victim != nil {
				if err := c.l2.Set(ctx, victim); err != nil {
					c.logger.Warn("cache_demotion_failed",
						slog.String("key", victim.Key),
						slog.String("error", err.Error()))
				}
			}
		}
	}
	if !stored {
		if err := c.l2.Set(ctx, e.Clone()); err != nil {
			c.logger.Warn("cache_l2_write_failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
			return false
		}
	}

	if len(vec) > 0 {
		c.l3.Set(e.Clone())
	}
	return true
}

// Invalidate removes the key from every tier and reports whether any tier
// held it.
func (c *MultiLevel) Invalidate(ctx context.Context, key string) bool {
	removed := c.l1.Delete(key)
	if ok, err := c.l2.Delete(ctx, key); err != nil {
		c.logger.Warn("cache_invalidate_failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	} else if ok {
		removed = true
	}
	if c.l3.Delete(key) {
		removed = true
	}
	if removed {
		c.countEviction("invalidated")
	}
	return removed
}

// InvalidateByTags removes every entry carrying any of the tags from all
// tiers and returns the total removed.
func (c *MultiLevel) InvalidateByTags(ctx context.Context, tags []string) int {
	if len(tags) == 0 {
		return 0
	}
	total := c.l1.InvalidateByTags(tags)
	if n, err := c.l2.InvalidateByTags(ctx, tags); err != nil {
		c.logger.Warn("cache_invalidate_tags_failed",
			slog.String("error", err.Error()))
	} else {
		total += n
	}
	total += c.l3.InvalidateByTags(tags)
	if total > 0 {
		c.countEviction("invalidated")
	}
	return total
}

// Clear drops everything from all tiers.
func (c *MultiLevel) Clear(ctx context.Context) {
	c.l1.Purge()
	if err := c.l2.Purge(ctx); err != nil {
		c.logger.Warn("cache_clear_failed", slog.String("error", err.Error()))
	}
	c.l3.Purge()
}

// Stats reports current per-tier entry counts.
type Stats struct {
	L1Entries int `json:"l1_entries"`
	L2Entries int `json:"l2_entries"`
	L3Entries int `json:"l3_entries"`
}

// Stats returns per-tier entry counts.
func (c *MultiLevel) Stats(ctx context.Context) Stats {
	return Stats{
		L1Entries: c.l1.Len(),
		L2Entries: c.l2.Len(ctx),
		L3Entries: c.l3.Len(),
	}
}

func (c *MultiLevel) countHit(tier Tier) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(string(tier)).Inc()
	}
}

func (c *MultiLevel) countEviction(reason string) {
	if c.metrics != nil {
		c.metrics.CacheEvictions.WithLabelValues("all", reason).Inc()
	}
}

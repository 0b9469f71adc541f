// Package cache implements the three-tier result cache: a small exact-match
// LRU for high-confidence entries (L1), a larger TTL tier with score-based
// eviction (L2, in memory or Redis-backed), and a semantic tier matched by
// embedding similarity (L3). Each tier has its own lock; promotions move
// entries upward on access patterns.
package cache

import (
	"context"
	"time"
)

// Tier names a cache level in lookup results and metrics.
type Tier string

const (
	TierNone Tier = ""
	TierL1   Tier = "l1"
	TierL2   Tier = "l2"
	TierL3   Tier = "l3"
)

// maxAccessTimes bounds the per-entry access history used for the
// recent-frequency signal.
const maxAccessTimes = 10

// Entry is one cached result. Value is an opaque serialized payload; the
// cache never inspects it.
type Entry struct {
	Key          string        `json:"key"`
	Value        []byte        `json:"value"`
	CreatedAt    time.Time     `json:"created_at"`
	TTL          time.Duration `json:"ttl"`
	HitCount     int           `json:"hit_count"`
	LastAccessed time.Time     `json:"last_accessed"`
	AccessTimes  []time.Time   `json:"access_times,omitempty"`
	Vector       []float32     `json:"vector,omitempty"`
	Confidence   float64       `json:"confidence"`
	Tags         []string      `json:"tags,omitempty"`
	SizeBytes    int           `json:"size_bytes"`
}

// Expired reports whether the entry's TTL has elapsed. A zero TTL means the
// entry never expires.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > e.TTL
}

// RecordAccess bumps the hit bookkeeping for one read.
func (e *Entry) RecordAccess(now time.Time) {
	e.HitCount++
	e.LastAccessed = now
	e.AccessTimes = append(e.AccessTimes, now)
	if len(e.AccessTimes) > maxAccessTimes {
		e.AccessTimes = e.AccessTimes[len(e.AccessTimes)-maxAccessTimes:]
	}
}

// HitsPerHour is the access rate over the retained history window. It
// drives L2 to L1 promotion.
func (e *Entry) HitsPerHour(now time.Time) float64 {
	n := 0
	for _, t := range e.AccessTimes {
		if now.Sub(t) <= time.Hour {
			n++
		}
	}
	return float64(n)
}

// evictionScore is the composite used to pick L2 victims: frequent, trusted
// and recently busy entries survive. Lowest score goes first.
func (e *Entry) evictionScore(now time.Time) float64 {
	return 0.4*float64(e.HitCount) + 0.3*e.Confidence + 0.3*e.HitsPerHour(now)
}

// HasTag reports whether the entry carries any of the given tags.
func (e *Entry) HasTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range e.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy so promoted entries do not share mutable state
// across tiers.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Value = append([]byte(nil), e.Value...)
	c.AccessTimes = append([]time.Time(nil), e.AccessTimes...)
	c.Vector = append([]float32(nil), e.Vector...)
	c.Tags = append([]string(nil), e.Tags...)
	return &c
}

// ExactTier is the interface shared by the in-memory and Redis-backed exact
// key tiers. Implementations handle their own locking and expiry.
type ExactTier interface {
	// Get returns a copy of the entry for key, recording the access. Expired
	// and malformed entries are purged and reported as a miss.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set stores the entry, evicting as needed.
	Set(ctx context.Context, e *Entry) error

	// Delete removes the key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// InvalidateByTags removes every entry carrying any of the tags and
	// returns the removed count.
	InvalidateByTags(ctx context.Context, tags []string) (int, error)

	// Len is the current entry count.
	Len(ctx context.Context) int

	// Purge drops everything.
	Purge(ctx context.Context) error
}

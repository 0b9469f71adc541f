package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryL2 is the in-memory warm tier: exact keys, TTL-bounded, with
// composite-score eviction when full. Expired entries are always purged
// before any score-based victim is chosen.
type MemoryL2 struct {
	mu      sync.Mutex
	entries map[string]*Entry
	size    int
	now     func() time.Time
}

var _ ExactTier = (*MemoryL2)(nil)

// NewMemoryL2 creates the warm tier with the given capacity.
func NewMemoryL2(size int, now func() time.Time) *MemoryL2 {
	if now == nil {
		now = time.Now
	}
	return &MemoryL2{
		entries: make(map[string]*Entry),
		size:    size,
		now:     now,
	}
}

// Get returns a copy of the entry for key, recording the access. Expired
// entries are purged and reported as a miss.
func (c *MemoryL2) Get(_ context.Context, key string) (*Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.Expired(c.now()) {
		delete(c.entries, key)
		return nil, false, nil
	}
	e.RecordAccess(c.now())
	return e.Clone(), true, nil
}

// Set stores the entry. At capacity, expired entries are purged first; if
// the tier is still full the entry with the lowest eviction score goes.
func (c *MemoryL2) Set(_ context.Context, e *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, present := c.entries[e.Key]; !present && len(c.entries) >= c.size {
		c.evictOneLocked()
	}
	c.entries[e.Key] = e
	return nil
}

// evictOneLocked frees one slot: expired entries first, then the lowest
// composite score.
func (c *MemoryL2) evictOneLocked() {
	now := c.now()
	for key, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, key)
			return
		}
	}

	var (
		victimKey   string
		victimScore float64
		found       bool
	)
	for key, e := range c.entries {
		score := e.evictionScore(now)
		if !found || score < victimScore {
			victimKey, victimScore, found = key, score, true
		}
	}
	if found {
		delete(c.entries, victimKey)
	}
}

// Delete removes the key, reporting whether it existed.
func (c *MemoryL2) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok, nil
}

// InvalidateByTags removes every entry carrying any of the tags.
func (c *MemoryL2) InvalidateByTags(_ context.Context, tags []string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.HasTag(tags) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len is the current entry count, expired included until touched.
func (c *MemoryL2) Len(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops everything.
func (c *MemoryL2) Purge(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	return nil
}

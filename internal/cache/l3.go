package cache

import (
	"sync"
	"time"

	"github.com/seekly/seekly/internal/store"
)

// SemanticL3 matches queries by embedding similarity instead of exact keys.
// A lookup scans the stored vectors and returns the best non-expired entry
// at or above the similarity threshold. Capacity eviction drops the least
// recently accessed entry.
type SemanticL3 struct {
	mu        sync.RWMutex
	entries   map[string]*Entry
	size      int
	threshold float64
	now       func() time.Time
}

// NewSemanticL3 creates the semantic tier.
func NewSemanticL3(size int, threshold float64, now func() time.Time) *SemanticL3 {
	if now == nil {
		now = time.Now
	}
	return &SemanticL3{
		entries:   make(map[string]*Entry),
		size:      size,
		threshold: threshold,
		now:       now,
	}
}

// Get returns a copy of the highest-similarity non-expired entry whose
// cosine similarity to vec meets the threshold, along with the similarity
// itself.
func (c *SemanticL3) Get(vec []float32) (*Entry, float64, bool) {
	if len(vec) == 0 {
		return nil, 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var (
		best    *Entry
		bestSim float64
	)
	for key, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, key)
			continue
		}
		if len(e.Vector) != len(vec) {
			continue
		}
		sim := store.CosineSimilarity(vec, e.Vector)
		if sim < c.threshold {
			continue
		}
		if best == nil || sim > bestSim {
			best, bestSim = e, sim
		}
	}
	if best == nil {
		return nil, 0, false
	}
	best.RecordAccess(now)
	return best.Clone(), bestSim, true
}

// Set stores an entry keyed by its exact key; entries without a vector are
// ignored since they could never match.
func (c *SemanticL3) Set(e *Entry) {
	if len(e.Vector) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, present := c.entries[e.Key]; !present && len(c.entries) >= c.size {
		c.evictOneLocked()
	}
	c.entries[e.Key] = e
}

// evictOneLocked drops an expired entry if any, else the least recently
// accessed one.
func (c *SemanticL3) evictOneLocked() {
	now := c.now()
	var (
		victimKey string
		oldest    time.Time
		found     bool
	)
	for key, e := range c.entries {
		if e.Expired(now) {
			delete(c.entries, key)
			return
		}
		last := e.LastAccessed
		if last.IsZero() {
			last = e.CreatedAt
		}
		if !found || last.Before(oldest) {
			victimKey, oldest, found = key, last, true
		}
	}
	if found {
		delete(c.entries, victimKey)
	}
}

// Delete removes the key, reporting whether it existed.
func (c *SemanticL3) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// InvalidateByTags removes every entry carrying any of the tags.
func (c *SemanticL3) InvalidateByTags(tags []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.HasTag(tags) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len is the current entry count.
func (c *SemanticL3) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops everything.
func (c *SemanticL3) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

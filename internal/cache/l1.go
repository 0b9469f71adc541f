package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultL1MaxEntryBytes rejects oversized payloads from the hot tier so a
// handful of huge responses cannot crowd out everything else.
const DefaultL1MaxEntryBytes = 256 * 1024

// L1Cache is the hot tier: a strict LRU over exact keys, reserved for
// high-confidence entries. The underlying LRU only synchronizes its own map;
// the tier mutex additionally covers the access bookkeeping on entries, and
// Get hands out copies so callers never touch shared state.
type L1Cache struct {
	mu            sync.Mutex
	entries       *lru.Cache[string, *Entry]
	size          int
	maxEntryBytes int
	now           func() time.Time
}

// NewL1Cache creates the hot tier with the given capacity.
func NewL1Cache(size int, now func() time.Time) (*L1Cache, error) {
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &L1Cache{
		entries:       entries,
		size:          size,
		maxEntryBytes: DefaultL1MaxEntryBytes,
		now:           now,
	}, nil
}

// Get returns a copy of the entry for key, recording the access. Expired
// entries are purged and reported as a miss.
func (c *L1Cache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if e.Expired(c.now()) {
		c.entries.Remove(key)
		return nil, false
	}
	e.RecordAccess(c.now())
	return e.Clone(), true
}

// Add stores an entry. When the tier is full the LRU victim is handed back
// to the caller so it can be demoted to L2 instead of dropped. Entries over
// the per-entry size budget are rejected with ok=false.
func (c *L1Cache) Add(e *Entry) (victim *Entry, ok bool) {
	if e.SizeBytes > c.maxEntryBytes {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, present := c.entries.Peek(e.Key); !present && c.entries.Len() >= c.size {
		if _, oldest, found := c.entries.GetOldest(); found {
			c.entries.Remove(oldest.Key)
			victim = oldest
		}
	}
	c.entries.Add(e.Key, e)
	return victim, true
}

// Delete removes the key, reporting whether it existed.
func (c *L1Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Remove(key)
}

// InvalidateByTags removes every entry carrying any of the tags.
func (c *L1Cache) InvalidateByTags(tags []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.entries.Keys() {
		e, ok := c.entries.Peek(key)
		if !ok {
			continue
		}
		if e.HasTag(tags) && c.entries.Remove(key) {
			removed++
		}
	}
	return removed
}

// Len is the current entry count.
func (c *L1Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Purge drops everything.
func (c *L1Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func l2Entry(key string, confidence float64, created time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Key:        key,
		Value:      []byte("v-" + key),
		CreatedAt:  created,
		TTL:        ttl,
		Confidence: confidence,
	}
}

func TestMemoryL2EvictsLowestCompositeScore(t *testing.T) {
	// Given a full tier where "hot" has accumulated hits and "cold" has none
	clock := newFakeClock()
	l2 := NewMemoryL2(2, clock.Now)
	ctx := context.Background()
	require.NoError(t, l2.Set(ctx, l2Entry("hot", 0.8, clock.Now(), time.Hour)))
	require.NoError(t, l2.Set(ctx, l2Entry("cold", 0.8, clock.Now(), time.Hour)))
	for i := 0; i < 5; i++ {
		_, ok, err := l2.Get(ctx, "hot")
		require.NoError(t, err)
		require.True(t, ok)
	}

	// When a third entry forces an eviction
	require.NoError(t, l2.Set(ctx, l2Entry("new", 0.8, clock.Now(), time.Hour)))

	// Then the cold entry is the victim
	_, ok, err := l2.Get(ctx, "hot")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = l2.Get(ctx, "cold")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = l2.Get(ctx, "new")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryL2PurgesExpiredBeforeScoring(t *testing.T) {
	// Given a full tier where the high-score entry has expired
	clock := newFakeClock()
	l2 := NewMemoryL2(2, clock.Now)
	ctx := context.Background()
	expiring := l2Entry("expiring", 0.99, clock.Now(), 30*time.Minute)
	expiring.HitCount = 100
	require.NoError(t, l2.Set(ctx, expiring))
	require.NoError(t, l2.Set(ctx, l2Entry("fresh", 0.7, clock.Now(), 4*time.Hour)))
	clock.Advance(time.Hour)

	// When inserting at capacity
	require.NoError(t, l2.Set(ctx, l2Entry("new", 0.7, clock.Now(), time.Hour)))

	// Then the expired entry went first despite its score
	_, ok, err := l2.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = l2.Get(ctx, "expiring")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryL2GetRecordsAccessHistory(t *testing.T) {
	clock := newFakeClock()
	l2 := NewMemoryL2(4, clock.Now)
	ctx := context.Background()
	require.NoError(t, l2.Set(ctx, l2Entry("k", 0.8, clock.Now(), time.Hour)))

	for i := 0; i < maxAccessTimes+5; i++ {
		clock.Advance(time.Second)
		_, ok, err := l2.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
	}

	e, ok, err := l2.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, maxAccessTimes+6, e.HitCount)
	// History stays bounded even as hits keep counting.
	assert.Len(t, e.AccessTimes, maxAccessTimes)
}

func TestMemoryL2DeleteAndTags(t *testing.T) {
	clock := newFakeClock()
	l2 := NewMemoryL2(4, clock.Now)
	ctx := context.Background()
	a := l2Entry("a", 0.8, clock.Now(), time.Hour)
	a.Tags = []string{"doc:1"}
	b := l2Entry("b", 0.8, clock.Now(), time.Hour)
	b.Tags = []string{"doc:2"}
	require.NoError(t, l2.Set(ctx, a))
	require.NoError(t, l2.Set(ctx, b))

	ok, err := l2.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l2.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := l2.InvalidateByTags(ctx, []string{"doc:2", "doc:9"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, l2.Len(ctx))
}

func TestHitsPerHourWindow(t *testing.T) {
	// Given accesses spread across two hours
	clock := newFakeClock()
	e := l2Entry("k", 0.8, clock.Now(), 0)
	e.RecordAccess(clock.Now())
	clock.Advance(90 * time.Minute)
	e.RecordAccess(clock.Now())
	clock.Advance(10 * time.Minute)
	e.RecordAccess(clock.Now())

	// Then only the accesses inside the trailing hour count
	assert.InDelta(t, 2.0, e.HitsPerHour(clock.Now()), 1e-9)
	assert.Equal(t, 3, e.HitCount)
}

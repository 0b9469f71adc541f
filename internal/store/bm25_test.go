package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catDogPassages() []*Passage {
	return []*Passage{
		{ChunkID: "p1", DocID: "doc1", Content: "The cat sat"},
		{ChunkID: "p2", DocID: "doc2", Content: "dogs bark loudly"},
		{ChunkID: "p3", DocID: "doc3", Content: "cats and dogs are pets"},
	}
}

func TestBM25SearchScoringMatchesFormula(t *testing.T) {
	// Given three indexed passages
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add(catDogPassages()))

	// Token counts after stop-word removal:
	//   p1: [cat sat]        (length 2)
	//   p2: [dogs bark loudly] (length 3)
	//   p3: [cats dogs pets]   (length 3)
	stats := idx.Stats()
	assert.Equal(t, 3, stats.DocumentCount)
	assert.InDelta(t, 8.0/3.0, stats.AvgDocLength, 1e-9)

	// When searching for "cat"
	results, err := idx.Search(context.Background(), "cat", 10, nil)
	require.NoError(t, err)

	// Then only the exact-term document matches ("cats" is a distinct term)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].ChunkID)
	assert.Equal(t, []string{"cat"}, results[0].MatchedTerms)

	// And the score matches the BM25 formula computed by hand
	// idf = ln((3 - 1 + 0.5) / (1 + 0.5))
	// norm = 1 - 0.75 + 0.75 * (2 / (8/3))
	// score = idf * (1 * 2.5) / (1 + 1.5 * norm)
	idf := math.Log(2.5 / 1.5)
	norm := 0.25 + 0.75*(2.0/(8.0/3.0))
	want := idf * 2.5 / (1.0 + 1.5*norm)
	assert.InDelta(t, want, results[0].Score, 1e-9)
}

func TestBM25RarerTermScoresHigher(t *testing.T) {
	// Given a corpus where "zebra" appears in one doc and "dogs" in two
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add([]*Passage{
		{ChunkID: "p1", DocID: "d1", Content: "dogs playing fetch"},
		{ChunkID: "p2", DocID: "d2", Content: "dogs sleeping soundly"},
		{ChunkID: "p3", DocID: "d3", Content: "zebra grazing quietly"},
	}))

	// When searching with both terms
	results, err := idx.Search(context.Background(), "zebra dogs", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Then the doc matching the rarer term ranks first
	assert.Equal(t, "p3", results[0].ChunkID)
}

func TestBM25SearchDeterministic(t *testing.T) {
	// Given an index over map-backed storage
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add(catDogPassages()))

	// When running the same query repeatedly
	first, err := idx.Search(context.Background(), "cats dogs", 10, nil)
	require.NoError(t, err)

	// Then ordering is identical on every run, ties broken by chunk ID
	for range 20 {
		again, err := idx.Search(context.Background(), "cats dogs", 10, nil)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for i := range first {
			assert.Equal(t, first[i].ChunkID, again[i].ChunkID)
			assert.InDelta(t, first[i].Score, again[i].Score, 1e-9)
		}
	}
}

func TestBM25EmptyIndexReturnsEmpty(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())

	results, err := idx.Search(context.Background(), "anything", 10, nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBM25StopwordOnlyQueryReturnsEmpty(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add(catDogPassages()))

	results, err := idx.Search(context.Background(), "the and of", 10, nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBM25NonMatchingDocsExcluded(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add(catDogPassages()))

	results, err := idx.Search(context.Background(), "dogs", 10, nil)

	// p1 has zero matching terms and must not appear with score 0.
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NotEqual(t, "p1", r.ChunkID)
		assert.Greater(t, r.Score, 0.0)
	}
}

func TestBM25RemoveUpdatesFrequencies(t *testing.T) {
	// Given three indexed passages
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add(catDogPassages()))
	require.Equal(t, 2, idx.DocFreq("dogs"))

	// When removing one of the docs containing "dogs"
	require.True(t, idx.Remove("p2"))

	// Then document frequency and the average length invariant update
	assert.Equal(t, 1, idx.DocFreq("dogs"))
	assert.Equal(t, 0, idx.DocFreq("bark"))
	assert.False(t, idx.Contains("p2"))

	stats := idx.Stats()
	assert.Equal(t, 2, stats.DocumentCount)
	assert.InDelta(t, 5.0/2.0, stats.AvgDocLength, 1e-9)

	// And removing an unknown chunk is a no-op
	assert.False(t, idx.Remove("p2"))
	assert.False(t, idx.Remove("nope"))
}

func TestBM25ReindexReplacesExisting(t *testing.T) {
	// Given an indexed passage
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add([]*Passage{{ChunkID: "p1", DocID: "d1", Content: "original cat content"}}))

	// When re-adding the same chunk ID with new content
	require.NoError(t, idx.Add([]*Passage{{ChunkID: "p1", DocID: "d1", Content: "replacement dog content"}}))

	// Then the old terms are gone and the new ones searchable
	assert.Equal(t, 1, idx.Stats().DocumentCount)
	assert.Equal(t, 0, idx.DocFreq("cat"))
	assert.Equal(t, 1, idx.DocFreq("dog"))

	results, err := idx.Search(context.Background(), "cat", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBM25FilterRestrictsCandidates(t *testing.T) {
	// Given passages with language metadata
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add([]*Passage{
		{ChunkID: "en1", DocID: "d1", Content: "dogs bark loudly", Metadata: Metadata{"lang": String("en")}},
		{ChunkID: "de1", DocID: "d2", Content: "dogs bark here too", Metadata: Metadata{"lang": String("de")}},
	}))

	// When searching with a language filter
	results, err := idx.Search(context.Background(), "dogs", 10, Filter{"lang": String("de")})

	// Then only matching-language passages are scored
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "de1", results[0].ChunkID)
}

func TestBM25TopKTruncation(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add(catDogPassages()))

	results, err := idx.Search(context.Background(), "cats dogs pets", 1, nil)

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestBM25CancelledContext(t *testing.T) {
	idx := NewBM25Index(DefaultBM25Config())
	require.NoError(t, idx.Add(catDogPassages()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Search(ctx, "dogs", 10, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

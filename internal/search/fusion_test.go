package search

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekly/seekly/internal/store"
)

func TestRRFFuseHandComputed(t *testing.T) {
	// Given two ranked lists sharing one document
	lexical := []*store.LexicalResult{
		{ChunkID: "a", Score: 2.0},
		{ChunkID: "b", Score: 1.0},
	}
	vector := []*store.VectorResult{
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.8},
	}
	f := NewRRFFusion(60)

	// When fusing with equal weights
	results := f.Fuse(lexical, vector, DefaultWeights())

	// Then each fused score is the exact reciprocal-rank sum; a document
	// absent from one list earns nothing from that source:
	//   a: 1/61 (lex rank 1)                      = 0.0163934...
	//   b: 1/62 (lex rank 2) + 1/61 (vec rank 1)  = 0.0325225...
	//   c: 1/62 (vec rank 2)                      = 0.0161290...
	// so the order is b, a, c and b appeared in both lists.
	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].ChunkID)
	assert.Equal(t, "a", results[1].ChunkID)
	assert.Equal(t, "c", results[2].ChunkID)
	assert.True(t, results[0].InBothLists)
	assert.False(t, results[1].InBothLists)

	bRaw := 1.0/62 + 1.0/61
	aRaw := 1.0 / 61
	cRaw := 1.0 / 62
	assert.InDelta(t, bRaw, results[0].RRFScore, 1e-12)
	assert.InDelta(t, aRaw, results[1].RRFScore, 1e-12)
	assert.InDelta(t, cRaw, results[2].RRFScore, 1e-12)

	// FinalScore rescales the same ordering so the top is exactly 1.0.
	assert.InDelta(t, 1.0, results[0].FinalScore, 1e-12)
	assert.InDelta(t, aRaw/bRaw, results[1].FinalScore, 1e-12)
	assert.InDelta(t, cRaw/bRaw, results[2].FinalScore, 1e-12)
}

func TestRRFFuseAbsentSourceContributesNothing(t *testing.T) {
	// Given deep lists where a weak both-lists document competes with a
	// mid-ranked single-list one: b sits at lexical rank 5 only, a sits at
	// lexical rank 9 and vector rank 10
	var lexical []*store.LexicalResult
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("lex%d", i)
		switch i {
		case 5:
			id = "b"
		case 9:
			id = "a"
		}
		lexical = append(lexical, &store.LexicalResult{ChunkID: id, Score: float64(11 - i)})
	}
	var vector []*store.VectorResult
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("vec%d", i)
		if i == 10 {
			id = "a"
		}
		vector = append(vector, &store.VectorResult{ID: id, Score: float32(1) / float32(i)})
	}

	// When fusing
	results := NewRRFFusion(60).Fuse(lexical, vector, DefaultWeights())

	// Then a (1/69 + 1/70) outranks b (1/65 alone): b gets no synthetic
	// credit for the vector list it never appeared in
	posOf := func(id string) int {
		for i, c := range results {
			if c.ChunkID == id {
				return i
			}
		}
		t.Fatalf("candidate %s missing", id)
		return -1
	}
	assert.Less(t, posOf("a"), posOf("b"))

	a := results[posOf("a")]
	b := results[posOf("b")]
	assert.InDelta(t, 1.0/69+1.0/70, a.RRFScore, 1e-12)
	assert.InDelta(t, 1.0/65, b.RRFScore, 1e-12)
}

func TestRRFFusePreservesOriginalScoresAndRanks(t *testing.T) {
	lexical := []*store.LexicalResult{{ChunkID: "a", Score: 2.5, MatchedTerms: []string{"cat"}}}
	vector := []*store.VectorResult{{ID: "a", Score: 0.91}}

	results := NewRRFFusion(60).Fuse(lexical, vector, DefaultWeights())

	require.Len(t, results, 1)
	c := results[0]
	assert.Equal(t, 2.5, c.BM25Score)
	assert.Equal(t, 1, c.BM25Rank)
	assert.InDelta(t, 0.91, c.VecScore, 1e-6)
	assert.Equal(t, 1, c.VecRank)
	assert.Equal(t, []string{"cat"}, c.MatchedTerms)
}

func TestRRFFuseWeightsBreakTies(t *testing.T) {
	// Given disjoint singleton lists: both documents earn the same RRF sum
	// (rank 1 in one list, missing rank in the other)
	lexical := []*store.LexicalResult{{ChunkID: "lex", Score: 1.0}}
	vector := []*store.VectorResult{{ID: "vec", Score: 0.99}}

	// When fusing with a lexical-heavy weighting
	results := NewRRFFusion(60).Fuse(lexical, vector, Weights{Lexical: 2.0, Semantic: 0.5})

	// Then the tie resolves toward the lexically stronger document
	require.Len(t, results, 2)
	assert.Equal(t, "lex", results[0].ChunkID)
	assert.Equal(t, results[0].RRFScore, results[1].RRFScore)

	// And the opposite weighting flips the tie
	flipped := NewRRFFusion(60).Fuse(lexical, vector, Weights{Lexical: 0.5, Semantic: 2.0})
	assert.Equal(t, "vec", flipped[0].ChunkID)
}

func TestRRFFuseWeightsDoNotChangeTheSum(t *testing.T) {
	// Given lists whose RRF sums differ, extreme weights must not reorder
	lexical := []*store.LexicalResult{
		{ChunkID: "a", Score: 2.0},
		{ChunkID: "b", Score: 1.0},
	}
	vector := []*store.VectorResult{
		{ID: "b", Score: 0.9},
		{ID: "c", Score: 0.8},
	}

	heavy := NewRRFFusion(60).Fuse(lexical, vector, Weights{Lexical: 10, Semantic: 0.1})
	require.Len(t, heavy, 3)
	assert.Equal(t, "b", heavy[0].ChunkID)
	assert.Equal(t, "a", heavy[1].ChunkID)
	assert.Equal(t, "c", heavy[2].ChunkID)
}

func TestRRFFuseEmptyInputs(t *testing.T) {
	f := NewRRFFusion(60)

	assert.Empty(t, f.Fuse(nil, nil, DefaultWeights()))

	onlyLex := f.Fuse([]*store.LexicalResult{{ChunkID: "a", Score: 1}}, nil, DefaultWeights())
	require.Len(t, onlyLex, 1)
	assert.Equal(t, "a", onlyLex[0].ChunkID)
}

func TestRRFFuseDeterministicTieBreak(t *testing.T) {
	// Given two documents with identical ranks in a single list
	f := NewRRFFusion(60)
	vector := []*store.VectorResult{
		{ID: "z", Score: 0.5},
		{ID: "a", Score: 0.5},
	}

	first := f.Fuse(nil, vector, DefaultWeights())
	for range 10 {
		again := f.Fuse(nil, vector, DefaultWeights())
		require.Equal(t, len(first), len(again))
		for i := range first {
			assert.Equal(t, first[i].ChunkID, again[i].ChunkID)
		}
	}
}

func TestRRFFuseDefaultConstant(t *testing.T) {
	assert.Equal(t, 60, NewRRFFusion(0).C)
	assert.Equal(t, 25, NewRRFFusion(25).C)
}

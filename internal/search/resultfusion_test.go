package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekly/seekly/internal/store"
)

func TestMergeDeduplicatesKeepingBestScore(t *testing.T) {
	// Given two variant result lists sharing a chunk
	fuser := NewResultFuser("quality", 0.3, 3)
	listA := []*Candidate{
		{ChunkID: "c1", FinalScore: 0.5},
		{ChunkID: "c2", FinalScore: 0.4},
	}
	listB := []*Candidate{
		{ChunkID: "c1", FinalScore: 0.8, InBothLists: true},
	}

	// When merging
	merged := fuser.Merge(listA, listB)

	// Then the duplicate keeps its best score and merged flags
	require.Len(t, merged, 2)
	assert.Equal(t, "c1", merged[0].ChunkID)
	assert.Equal(t, 0.8, merged[0].FinalScore)
	assert.True(t, merged[0].InBothLists)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	fuser := NewResultFuser("", 0, 3)
	original := &Candidate{ChunkID: "c1", FinalScore: 0.5}

	merged := fuser.Merge([]*Candidate{original}, []*Candidate{{ChunkID: "c1", FinalScore: 0.9}})

	assert.Equal(t, 0.5, original.FinalScore)
	assert.Equal(t, 0.9, merged[0].FinalScore)
}

// inBandContent builds a passage inside the rewarded length band that
// mentions every given term and ends on a full sentence.
func inBandContent(terms ...string) string {
	body := "This passage covers " + strings.Join(terms, " and ") + " in detail. "
	return body + strings.Repeat("More context follows here. ", 12) + "It ends cleanly."
}

func TestApplyQualityBonusIsBoundedByBaseScore(t *testing.T) {
	// Given an ideal candidate: in-band length, full term overlap, clean
	// ending and a perfect curated quality signal
	fuser := NewResultFuser("quality", 0.3, 3)
	candidates := []*Candidate{
		{
			ChunkID:    "ideal",
			FinalScore: 0.5,
			Content:    inBandContent("retrieval", "cache"),
			Metadata:   store.Metadata{"quality": store.Number(1.0)},
		},
	}

	// When applying the bonus
	fuser.ApplyQualityBonus(candidates, []string{"retrieval", "cache"})

	// Then the gain is exactly the cap fraction of the base score
	assert.InDelta(t, 0.65, candidates[0].FinalScore, 1e-9)
}

func TestApplyQualityBonusPenalizesMidSentenceCut(t *testing.T) {
	// Given two equally relevant passages, one cut off mid-sentence
	fuser := NewResultFuser("", 0.3, 3)
	clean := inBandContent("retrieval")
	cut := strings.TrimSuffix(clean, " cleanly.")
	candidates := []*Candidate{
		{ChunkID: "clean", FinalScore: 0.5, Content: clean},
		{ChunkID: "cut", FinalScore: 0.5, Content: cut},
	}

	// When applying the bonus
	fuser.ApplyQualityBonus(candidates, []string{"retrieval"})

	// Then the cut passage ranks below the clean one
	require.Equal(t, "clean", candidates[0].ChunkID)
	assert.Greater(t, candidates[0].FinalScore, candidates[1].FinalScore)
}

func TestApplyQualityBonusNeverLowersScore(t *testing.T) {
	// Given a short fragment with no query overlap and no terminal punctuation
	fuser := NewResultFuser("quality", 0.3, 3)
	candidates := []*Candidate{
		{ChunkID: "frag", FinalScore: 0.5, Content: "tiny frag"},
	}

	fuser.ApplyQualityBonus(candidates, []string{"cache"})

	// Then the signal clamps at zero instead of subtracting
	assert.InDelta(t, 0.5, candidates[0].FinalScore, 1e-9)
}

func TestApplyQualityBonusIgnoresWrongMetadataKind(t *testing.T) {
	fuser := NewResultFuser("quality", 0.3, 3)
	candidates := []*Candidate{
		{ChunkID: "c1", FinalScore: 0.5, Metadata: store.Metadata{"quality": store.String("high")}},
	}

	fuser.ApplyQualityBonus(candidates, nil)

	assert.Equal(t, 0.5, candidates[0].FinalScore)
}

func TestDiversifyCapsPerDocument(t *testing.T) {
	// Given five passages from one document ranked above a second document
	fuser := NewResultFuser("", 0, 3)
	candidates := []*Candidate{
		{ChunkID: "a1", DocID: "docA", FinalScore: 0.9},
		{ChunkID: "a2", DocID: "docA", FinalScore: 0.8},
		{ChunkID: "a3", DocID: "docA", FinalScore: 0.7},
		{ChunkID: "a4", DocID: "docA", FinalScore: 0.6},
		{ChunkID: "a5", DocID: "docA", FinalScore: 0.5},
		{ChunkID: "b1", DocID: "docB", FinalScore: 0.4},
	}

	// When diversifying to ten results
	out := fuser.Diversify(candidates, 10)

	// Then at most three passages of docA survive and docB gets through
	require.Len(t, out, 4)
	ids := []string{out[0].ChunkID, out[1].ChunkID, out[2].ChunkID, out[3].ChunkID}
	assert.Equal(t, []string{"a1", "a2", "a3", "b1"}, ids)
}

func TestDiversifyHonorsTopK(t *testing.T) {
	fuser := NewResultFuser("", 0, 3)
	candidates := []*Candidate{
		{ChunkID: "a", DocID: "d1", FinalScore: 0.9},
		{ChunkID: "b", DocID: "d2", FinalScore: 0.8},
		{ChunkID: "c", DocID: "d3", FinalScore: 0.7},
	}

	out := fuser.Diversify(candidates, 2)

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ChunkID)
	assert.Equal(t, "b", out[1].ChunkID)
}

package search

import (
	"sort"

	"github.com/seekly/seekly/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter, empirically
// validated across domains.
const DefaultRRFConstant = 60

// RRFFusion combines lexical and vector results using Reciprocal Rank
// Fusion:
//
//	score(d) = Σ 1 / (rank_i + C)
//
// where rank_i is the 1-indexed position of d in list i and C is the
// smoothing constant. Higher C flattens the influence of rank differences.
// Mode weights stay out of the sum; they only break score ties (see Fuse).
type RRFFusion struct {
	C int
}

// NewRRFFusion creates an RRF fusion instance. Non-positive constants fall
// back to the default.
func NewRRFFusion(c int) *RRFFusion {
	if c <= 0 {
		c = DefaultRRFConstant
	}
	return &RRFFusion{C: c}
}

// Fuse merges the two ranked lists into fused candidates.
//
// RRFScore is the exact sum: a document absent from one list contributes
// nothing for that source. FinalScore carries the same ordering rescaled so
// the top candidate is 1.0, which gives downstream thresholds and boosts a
// stable scale regardless of list sizes.
//
// The weights do not scale the RRF sum. They weigh the normalized original
// path scores into a secondary sort key, so a lexical-heavy mode prefers the
// lexically stronger document among RRF ties without distorting the fused
// ranking itself.
//
// Ordering is fully deterministic: RRF score desc, then weighted tie-break
// desc, then both-lists first, then lexical score desc, then chunk ID asc.
func (f *RRFFusion) Fuse(lexical []*store.LexicalResult, vector []*store.VectorResult, weights Weights) []*Candidate {
	if len(lexical) == 0 && len(vector) == 0 {
		return []*Candidate{}
	}

	byID := make(map[string]*Candidate, len(lexical)+len(vector))
	get := func(id string) *Candidate {
		if c, ok := byID[id]; ok {
			return c
		}
		c := &Candidate{ChunkID: id}
		byID[id] = c
		return c
	}

	for rank, r := range lexical {
		c := get(r.ChunkID)
		c.BM25Score = r.Score
		c.BM25Rank = rank + 1
		c.MatchedTerms = r.MatchedTerms
		c.RRFScore += 1 / float64(rank+1+f.C)
	}

	for rank, r := range vector {
		c := get(r.ID)
		c.VecScore = float64(r.Score)
		c.VecRank = rank + 1
		c.RRFScore += 1 / float64(rank+1+f.C)
		if c.BM25Rank > 0 {
			c.InBothLists = true
		}
	}

	maxBM25 := 0.0
	for _, c := range byID {
		if c.BM25Score > maxBM25 {
			maxBM25 = c.BM25Score
		}
	}

	results := make([]*Candidate, 0, len(byID))
	for _, c := range byID {
		lex := 0.0
		if maxBM25 > 0 {
			lex = c.BM25Score / maxBM25
		}
		c.TieBreak = weights.Lexical*lex + weights.Semantic*c.VecScore
		results = append(results, c)
	}
	sort.Slice(results, func(i, j int) bool {
		return compareCandidates(results[i], results[j])
	})

	setFinalScores(results)
	return results
}

// compareCandidates reports whether a ranks before b.
func compareCandidates(a, b *Candidate) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.TieBreak != b.TieBreak {
		return a.TieBreak > b.TieBreak
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.BM25Score != b.BM25Score {
		return a.BM25Score > b.BM25Score
	}
	return a.ChunkID < b.ChunkID
}

// setFinalScores seeds FinalScore with the RRF ordering rescaled so the top
// candidate is 1.0. RRFScore itself stays the raw sum; only the presentation
// scale is normalized, so ordering is untouched.
func setFinalScores(results []*Candidate) {
	if len(results) == 0 {
		return
	}
	top := results[0].RRFScore
	if top <= 0 {
		return
	}
	for _, c := range results {
		c.FinalScore = c.RRFScore / top
	}
}

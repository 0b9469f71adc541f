// Package search provides hybrid retrieval combining BM25 lexical search
// and dense vector search, fused with Reciprocal Rank Fusion (RRF), plus
// result-level deduplication, diversity, and reranking.
package search

import (
	"github.com/seekly/seekly/internal/store"
)

// Weights bias the two retrieval paths when fused candidates tie on their
// RRF score. They never enter the RRF sum itself.
type Weights struct {
	Lexical  float64
	Semantic float64
}

// DefaultWeights treats both paths equally.
func DefaultWeights() Weights {
	return Weights{Lexical: 1.0, Semantic: 1.0}
}

// Candidate is a single result flowing through fusion and reranking.
type Candidate struct {
	ChunkID      string
	DocID        string
	Content      string
	Metadata     store.Metadata
	RRFScore     float64  // raw reciprocal-rank sum across both lists
	BM25Score    float64  // original lexical score
	BM25Rank     int      // position in the lexical list (1-indexed, 0 if absent)
	VecScore     float64  // original vector similarity
	VecRank      int      // position in the vector list (1-indexed, 0 if absent)
	TieBreak     float64  // weighted path preference, breaks RRF score ties
	InBothLists  bool     // appeared in both retrieval paths
	MatchedTerms []string // lexical matched terms, for highlighting
	FinalScore   float64  // normalized score after quality bonus and reranking
}

// Options controls a single hybrid search call.
type Options struct {
	// TopK is the number of final results.
	TopK int

	// CandidateCount is how many candidates each path retrieves before
	// fusion. Zero derives it from TopK.
	CandidateCount int

	// Filter restricts both paths to passages matching the metadata
	// predicate.
	Filter store.Filter

	// UseSemantic enables the dense retrieval path.
	UseSemantic bool
}

// DegradedPath names the fallback taken when one retrieval path failed or
// the selected strategy had to be downgraded.
type DegradedPath string

const (
	DegradedNone             DegradedPath = ""
	DegradedLexicalOnly      DegradedPath = "lexical_only"
	DegradedVectorOnly       DegradedPath = "vector_only"
	DegradedStrategyFallback DegradedPath = "strategy_fallback"
)

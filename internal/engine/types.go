// Package engine is the facade over the retrieval pipeline: cache check,
// strategy selection, optional query expansion, hybrid search, result
// fusion, rerank and cache write-back, plus index maintenance.
package engine

import (
	"github.com/seekly/seekly/internal/store"
)

// Result is one ranked passage in a response.
type Result struct {
	ChunkID  string         `json:"chunk_id"`
	DocID    string         `json:"doc_id"`
	Content  string         `json:"content"`
	Metadata store.Metadata `json:"metadata,omitempty"`

	// Score is the final adjusted score the ranking is ordered by.
	Score float64 `json:"score"`

	// BM25Score and VectorScore are the raw per-path signals, zero when
	// the path did not rank this passage.
	BM25Score   float64 `json:"bm25_score,omitempty"`
	VectorScore float64 `json:"vector_score,omitempty"`

	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// ResponseMeta describes how a response was produced.
type ResponseMeta struct {
	RequestID    string `json:"request_id"`
	StrategyUsed string `json:"strategy_used"`

	// Upgraded is true when the complexity signal raised the mode above
	// the requested one.
	Upgraded bool `json:"upgraded,omitempty"`

	// CacheTierHit names the cache tier that served the response, empty
	// when the pipeline ran.
	CacheTierHit string `json:"cache_tier_hit,omitempty"`

	// Degraded is true when a retrieval stage failed and a simpler path
	// served the request.
	Degraded     bool   `json:"degraded,omitempty"`
	DegradedPath string `json:"degraded_path,omitempty"`

	TotalCandidatesConsidered int `json:"total_candidates_considered"`

	// QueryVariants are the expanded phrasings searched besides the
	// original query.
	QueryVariants []string `json:"query_variants,omitempty"`

	ElapsedMs int64 `json:"elapsed_ms"`
}

// Response is the engine's answer to one retrieval request.
type Response struct {
	Results []Result     `json:"results"`
	Meta    ResponseMeta `json:"meta"`
}

// RetrieveOptions are the caller-controlled knobs of one retrieval.
type RetrieveOptions struct {
	// Mode forces a strategy mode (fast, accurate, comprehensive). Empty
	// uses the configured default with complexity-based upgrades.
	Mode string

	// Filter restricts results to passages whose metadata matches.
	Filter store.Filter

	// MaxResults overrides the profile's top-k when positive.
	MaxResults int
}

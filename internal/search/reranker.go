package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/seekly/seekly/internal/store"
)

// Reranker reorders fused candidates by re-scoring them against the query.
type Reranker interface {
	// Rerank adjusts candidate final scores in place and re-sorts the
	// slice. Candidates must already carry content and metadata.
	Rerank(ctx context.Context, query string, candidates []*Candidate) error
}

// Heuristic reranker boost bounds. The boosts are deliberately small: they
// re-order near-ties, they do not overrule retrieval.
const (
	maxOverlapBoost = 0.2
	phraseBoost     = 0.1
	maxRecencyBoost = 0.1

	// recencyHalfLife controls how fast the freshness boost decays.
	recencyHalfLife = 30 * 24 * time.Hour
)

// HeuristicReranker scores candidates with cheap lexical signals: query-term
// overlap, exact phrase presence, and document freshness. It is the default
// reranker; a cross-encoder service can replace it behind the same
// interface.
type HeuristicReranker struct {
	tokenizer *store.Tokenizer
	now       func() time.Time
}

var _ Reranker = (*HeuristicReranker)(nil)

// NewHeuristicReranker creates a heuristic reranker sharing the index
// tokenizer.
func NewHeuristicReranker(tokenizer *store.Tokenizer) *HeuristicReranker {
	return &HeuristicReranker{tokenizer: tokenizer, now: time.Now}
}

// Rerank applies the boosts and re-sorts by final score.
func (r *HeuristicReranker) Rerank(ctx context.Context, query string, candidates []*Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	queryTerms := r.tokenizer.Terms(query)
	if len(queryTerms) == 0 || len(candidates) == 0 {
		return nil
	}
	querySet := make(map[string]struct{}, len(queryTerms))
	for _, t := range queryTerms {
		querySet[t] = struct{}{}
	}
	phrase := strings.ToLower(strings.TrimSpace(query))
	now := r.now()

	for _, c := range candidates {
		c.FinalScore += r.overlapBoost(querySet, c)
		if len(queryTerms) > 1 && strings.Contains(strings.ToLower(c.Content), phrase) {
			c.FinalScore += phraseBoost
		}
		c.FinalScore += r.recencyBoost(now, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FinalScore != candidates[j].FinalScore {
			return candidates[i].FinalScore > candidates[j].FinalScore
		}
		return compareCandidates(candidates[i], candidates[j])
	})
	return nil
}

// overlapBoost scales with the fraction of distinct query terms found in the
// passage.
func (r *HeuristicReranker) overlapBoost(querySet map[string]struct{}, c *Candidate) float64 {
	if c.Content == "" {
		return 0
	}
	found := make(map[string]struct{})
	for _, t := range r.tokenizer.Terms(c.Content) {
		if _, ok := querySet[t]; ok {
			found[t] = struct{}{}
		}
	}
	if len(found) == 0 {
		return 0
	}
	return maxOverlapBoost * float64(len(found)) / float64(len(querySet))
}

// recencyBoost decays exponentially with passage age.
func (r *HeuristicReranker) recencyBoost(now time.Time, c *Candidate) float64 {
	v, ok := c.Metadata["updated_at"]
	if !ok || v.Kind != store.MetaNumber {
		return 0
	}
	updated := time.UnixMilli(int64(v.Num))
	age := now.Sub(updated)
	if age < 0 {
		age = 0
	}
	return maxRecencyBoost * math.Exp2(-age.Hours()/recencyHalfLife.Hours())
}

package search

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/seekly/seekly/internal/embed"
	"github.com/seekly/seekly/internal/errors"
	"github.com/seekly/seekly/internal/store"
)

// candidateFactor derives the per-path candidate count from TopK when the
// caller does not set one. Fetching more than TopK gives fusion and the
// diversity cap room to work.
const candidateFactor = 4

// HybridSearcher runs the lexical and dense retrieval paths in parallel and
// fuses their rankings. A failing path degrades the search instead of
// failing it; only both paths failing is an error.
type HybridSearcher struct {
	lexical  *store.BM25Index
	vectors  store.VectorSearcher
	embedder embed.Embedder
	fusion   *RRFFusion
	weights  Weights
	logger   *slog.Logger
}

// NewHybridSearcher creates a hybrid searcher.
func NewHybridSearcher(
	lexical *store.BM25Index,
	vectors store.VectorSearcher,
	embedder embed.Embedder,
	fusion *RRFFusion,
	weights Weights,
	logger *slog.Logger,
) *HybridSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSearcher{
		lexical:  lexical,
		vectors:  vectors,
		embedder: embedder,
		fusion:   fusion,
		weights:  weights,
		logger:   logger,
	}
}

// Search runs both retrieval paths for one query and returns fused
// candidates plus the degradation path taken, if any.
func (h *HybridSearcher) Search(ctx context.Context, query string, opts Options) ([]*Candidate, DegradedPath, error) {
	candidates := opts.CandidateCount
	if candidates <= 0 {
		candidates = opts.TopK * candidateFactor
	}

	var (
		lexResults []*store.LexicalResult
		lexErr     error
		vecResults []*store.VectorResult
		vecErr     error
	)

	// Both paths always run to completion; degradation is decided from
	// the pair of outcomes, so the group must not cancel siblings.
	g := &errgroup.Group{}
	g.Go(func() error {
		lexResults, lexErr = h.lexical.Search(ctx, query, candidates, opts.Filter)
		return nil
	})
	if opts.UseSemantic {
		g.Go(func() error {
			vecResults, vecErr = h.semanticSearch(ctx, query, candidates, opts.Filter)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, DegradedNone, err
	}

	switch {
	case lexErr != nil && opts.UseSemantic && vecErr != nil:
		return nil, DegradedNone, errors.Wrap(lexErr, errors.ErrCodeSearchFailed, "both retrieval paths failed").
			WithContext("vector_error", vecErr.Error())

	case lexErr != nil:
		if !opts.UseSemantic {
			return nil, DegradedNone, errors.Wrap(lexErr, errors.ErrCodeSearchFailed, "lexical search failed")
		}
		h.logger.Warn("lexical_path_failed",
			slog.String("query", query),
			slog.String("error", lexErr.Error()))
		return h.fusion.Fuse(nil, vecResults, h.weights), DegradedVectorOnly, nil

	case opts.UseSemantic && vecErr != nil:
		h.logger.Warn("semantic_path_failed",
			slog.String("query", query),
			slog.String("error", vecErr.Error()))
		return h.fusion.Fuse(lexResults, nil, h.weights), DegradedLexicalOnly, nil

	case opts.UseSemantic && len(vecResults) == 0 && len(lexResults) > 0:
		// A dense path that comes back empty while the lexical path has
		// matches counts as degraded too, not as a silently thinner fusion.
		h.logger.Warn("semantic_path_empty",
			slog.String("query", query))
		return h.fusion.Fuse(lexResults, nil, h.weights), DegradedLexicalOnly, nil
	}

	return h.fusion.Fuse(lexResults, vecResults, h.weights), DegradedNone, nil
}

func (h *HybridSearcher) semanticSearch(ctx context.Context, query string, k int, filter store.Filter) ([]*store.VectorResult, error) {
	vec, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "embed query")
	}
	return h.vectors.Search(ctx, vec, k, filter)
}

package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seekly/seekly/internal/errors"
	"github.com/seekly/seekly/internal/expand"
	"github.com/seekly/seekly/internal/search"
	"github.com/seekly/seekly/internal/store"
	"github.com/seekly/seekly/internal/strategy"
)

// maxParallelVariants bounds concurrent hybrid searches across expanded
// query variants.
const maxParallelVariants = 4

// Retrieve answers one query: cache check, strategy selection, optional
// expansion, hybrid search per variant, fusion, diversity, rerank and cache
// write-back.
func (e *Engine) Retrieve(ctx context.Context, query string, opts RetrieveOptions) (*Response, error) {
	started := e.now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "empty query")
	}
	if maxLen := e.cfg.Search.MaxQueryLength; maxLen > 0 && len(query) > maxLen {
		return nil, errors.New(errors.ErrCodeQueryTooLong, "query exceeds maximum length").
			WithContext("length", len(query)).
			WithContext("max", maxLen)
	}

	decision, err := e.selector.Select(query, opts.Mode)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidQuery, "strategy selection")
	}
	profile := decision.Profile

	requestID := uuid.NewString()
	log := e.logger.With(
		slog.String("request_id", requestID),
		slog.String("mode", profile.Mode.String()))

	if e.metrics != nil {
		e.metrics.SearchesTotal.WithLabelValues(profile.Mode.String()).Inc()
		defer func() {
			e.metrics.SearchDuration.WithLabelValues(profile.Mode.String()).
				Observe(time.Since(started).Seconds())
		}()
	}

	// The query embedding serves both the semantic cache tier and the
	// dense retrieval path; the embed cache makes the second use free.
	var queryVec []float32
	if profile.UseSemantic || e.cache != nil {
		if vec, err := e.embedder.Embed(ctx, query); err != nil {
			log.Warn("query_embedding_failed",
				slog.String("error", err.Error()))
		} else {
			queryVec = vec
		}
	}

	cacheKey := ""
	if e.cache != nil {
		cacheKey = e.cacheKey(query, profile.Mode, opts.Filter)
		if resp, ok := e.cachedResponse(ctx, cacheKey, queryVec, requestID, started, log); ok {
			return resp, nil
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, profile.Timeout)
	defer cancel()

	queries, variants := e.expandQuery(searchCtx, query, decision)

	lists, total, degradedPath, err := e.searchVariants(searchCtx, queries, profile, opts.Filter, log)
	if err != nil && errors.GetCode(err) == errors.ErrCodeBackendTimeout && profile.Mode != strategy.ModeFast {
		// One retry under the next simpler profile before giving up,
		// primary query only since the downgrade is latency-driven.
		fallback := e.selector.ProfileFor(strategy.Degrade(profile.Mode))
		log.Warn("strategy_downgrade",
			slog.String("from", profile.Mode.String()),
			slog.String("to", fallback.Mode.String()),
			slog.String("error", err.Error()))

		var retryCancel context.CancelFunc
		searchCtx, retryCancel = context.WithTimeout(ctx, fallback.Timeout)
		defer retryCancel()
		lists, total, _, err = e.searchVariants(searchCtx, queries[:1], fallback, opts.Filter, log)
		if err == nil {
			profile = fallback
			variants = nil
			degradedPath = string(search.DegradedStrategyFallback)
		}
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.SearchErrors.WithLabelValues(errors.GetCode(err)).Inc()
		}
		return nil, err
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = profile.TopK
	}
	degraded := degradedPath != ""
	if degraded && e.metrics != nil {
		e.metrics.DegradedTotal.WithLabelValues(degradedPath).Inc()
	}

	merged := e.fuser.Merge(lists...)
	if err := e.hydrate(searchCtx, merged); err != nil {
		return nil, err
	}
	e.fuser.ApplyQualityBonus(merged, e.lexical.Tokenizer().Terms(query))
	merged = filterByScore(merged, profile.MinScore)

	if profile.UseRerank {
		if err := e.reranker.Rerank(searchCtx, query, merged); err != nil {
			log.Warn("rerank_failed",
				slog.String("error", err.Error()))
		}
	}

	if profile.UseDiversity {
		merged = e.fuser.Diversify(merged, maxResults)
	} else if len(merged) > maxResults {
		merged = merged[:maxResults]
	}

	resp := &Response{
		Results: toResults(merged),
		Meta: ResponseMeta{
			RequestID:                 requestID,
			StrategyUsed:              profile.Mode.String(),
			Upgraded:                  decision.Upgraded,
			Degraded:                  degraded,
			DegradedPath:              degradedPath,
			TotalCandidatesConsidered: total,
			QueryVariants:             variants,
			ElapsedMs:                 time.Since(started).Milliseconds(),
		},
	}

	if e.cache != nil {
		e.writeBack(searchCtx, cacheKey, queryVec, resp, log)
	}

	log.Info("retrieval_complete",
		slog.Int("results", len(resp.Results)),
		slog.Int("candidates", total),
		slog.Bool("degraded", degraded),
		slog.Int64("elapsed_ms", resp.Meta.ElapsedMs))
	return resp, nil
}

// expandQuery returns the list of queries to search and the variant texts
// used. Expansion runs only when the profile allows it and the query's
// complexity warrants it; comprehensive mode always expands.
func (e *Engine) expandQuery(ctx context.Context, query string, decision strategy.Decision) (queries, variants []string) {
	queries = []string{query}
	if e.expander == nil || !decision.Profile.UseExpansion {
		return queries, nil
	}
	if decision.Analysis.Complexity == expand.ComplexitySimple &&
		decision.Profile.Mode != strategy.ModeComprehensive {
		return queries, nil
	}

	expansion := e.expander.Expand(ctx, query)
	for _, v := range expansion.Variants {
		variants = append(variants, v.Text)
		if e.metrics != nil {
			e.metrics.ExpansionsTotal.WithLabelValues(string(v.Source)).Inc()
		}
	}
	return expansion.Queries(), variants
}

// searchVariants runs the hybrid search once per query variant with bounded
// parallelism. A failing variant is dropped; a failing primary query is an
// error only when no variant produced candidates either.
func (e *Engine) searchVariants(
	ctx context.Context,
	queries []string,
	profile strategy.Profile,
	filter store.Filter,
	log *slog.Logger,
) (lists [][]*search.Candidate, total int, degradedPath string, err error) {
	weights := search.Weights{
		Lexical:  1 - profile.VectorWeight,
		Semantic: profile.VectorWeight,
	}
	searcher := search.NewHybridSearcher(e.lexical, e.vectors, e.embedder, e.fusion, weights, e.logger)
	searchOpts := search.Options{
		TopK:           profile.TopK,
		CandidateCount: profile.TopK * profile.CandidateFactor,
		Filter:         filter,
		UseSemantic:    profile.UseSemantic,
	}

	var (
		mu         sync.Mutex
		primaryErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelVariants)
	for i, q := range queries {
		primary := i == 0
		g.Go(func() error {
			candidates, path, searchErr := searcher.Search(gctx, q, searchOpts)

			mu.Lock()
			defer mu.Unlock()
			if searchErr != nil {
				if primary {
					primaryErr = searchErr
				} else {
					log.Warn("variant_search_failed",
						slog.String("variant", q),
						slog.String("error", searchErr.Error()))
				}
				return nil
			}
			if path != search.DegradedNone {
				degradedPath = string(path)
			}
			lists = append(lists, candidates)
			total += len(candidates)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, 0, "", errors.Wrap(err, errors.ErrCodeBackendTimeout, "retrieval deadline exceeded")
	}
	if primaryErr != nil && total == 0 {
		return nil, 0, "", primaryErr
	}
	return lists, total, degradedPath, nil
}

// hydrate fills candidate content, document ID and metadata from the
// passage store. Fusion works on IDs alone, so every downstream stage that
// reads content depends on this step.
func (e *Engine) hydrate(ctx context.Context, candidates []*search.Candidate) error {
	missing := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Content == "" {
			missing = append(missing, c.ChunkID)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	passages, err := e.passages.GetPassages(ctx, missing)
	if err != nil {
		return err
	}
	byID := make(map[string]*store.Passage, len(passages))
	for _, p := range passages {
		byID[p.ChunkID] = p
	}
	for _, c := range candidates {
		if p, ok := byID[c.ChunkID]; ok {
			c.Content = p.Content
			c.DocID = p.DocID
			c.Metadata = p.Metadata
		}
	}
	return nil
}

// cachedResponse serves a response from the cache if possible. A payload
// that no longer decodes is purged and treated as a miss.
func (e *Engine) cachedResponse(ctx context.Context, key string, vec []float32, requestID string, started time.Time, log *slog.Logger) (*Response, bool) {
	payload, tier, ok := e.cache.Get(ctx, key, vec)
	if !ok {
		return nil, false
	}

	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		log.Warn("cache_payload_corrupt",
			slog.String("error", err.Error()))
		e.cache.Invalidate(ctx, key)
		return nil, false
	}

	resp.Meta.RequestID = requestID
	resp.Meta.CacheTierHit = string(tier)
	resp.Meta.ElapsedMs = time.Since(started).Milliseconds()
	log.Info("cache_hit",
		slog.String("tier", string(tier)))
	return &resp, true
}

// writeBack caches the finished response. Confidence gating inside the
// cache drops weak or degraded results.
func (e *Engine) writeBack(ctx context.Context, key string, vec []float32, resp *Response, log *slog.Logger) {
	confidence := responseConfidence(resp)

	payload, err := json.Marshal(resp)
	if err != nil {
		log.Warn("cache_encode_failed",
			slog.String("error", err.Error()))
		return
	}

	tags := make([]string, 0, len(resp.Results))
	seen := make(map[string]struct{})
	for _, r := range resp.Results {
		if _, dup := seen[r.DocID]; dup {
			continue
		}
		seen[r.DocID] = struct{}{}
		tags = append(tags, docTag(r.DocID))
	}

	if e.cache.Set(ctx, key, payload, e.cfg.Cache.L2TTL, vec, confidence, tags) {
		log.Debug("cache_write",
			slog.Float64("confidence", confidence))
	}
}

// responseConfidence estimates how trustworthy a response is for caching.
// Degraded responses never clear the write gate; full responses score on
// result count and cross-path agreement.
func responseConfidence(resp *Response) float64 {
	if len(resp.Results) == 0 {
		return 0.2
	}
	if resp.Meta.Degraded {
		return 0.6
	}
	confidence := 0.75
	if len(resp.Results) >= 3 {
		confidence += 0.05
	}
	if resp.Results[0].BM25Score > 0 && resp.Results[0].VectorScore > 0 {
		confidence += 0.15
	}
	return confidence
}

// cacheKey builds a deterministic exact-match key from the query, the
// selected mode and the filter.
func (e *Engine) cacheKey(query string, mode strategy.Mode, filter store.Filter) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	h.Write([]byte{0})
	h.Write([]byte(mode.String()))
	h.Write([]byte{0})

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{1})
		h.Write([]byte(filter[k].Display()))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func filterByScore(candidates []*search.Candidate, minScore float64) []*search.Candidate {
	if minScore <= 0 {
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if c.FinalScore >= minScore {
			kept = append(kept, c)
		}
	}
	return kept
}

func toResults(candidates []*search.Candidate) []Result {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			ChunkID:      c.ChunkID,
			DocID:        c.DocID,
			Content:      c.Content,
			Metadata:     c.Metadata,
			Score:        c.FinalScore,
			BM25Score:    c.BM25Score,
			VectorScore:  c.VecScore,
			MatchedTerms: c.MatchedTerms,
		}
	}
	return results
}

package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seekly/seekly/internal/cache"
	"github.com/seekly/seekly/internal/config"
	"github.com/seekly/seekly/internal/embed"
	"github.com/seekly/seekly/internal/errors"
	"github.com/seekly/seekly/internal/expand"
	"github.com/seekly/seekly/internal/metrics"
	"github.com/seekly/seekly/internal/search"
	"github.com/seekly/seekly/internal/store"
	"github.com/seekly/seekly/internal/strategy"
)

// indexBatchSize bounds one embedding call during ingestion.
const indexBatchSize = 64

// indexWorkers bounds concurrent embedding batches during ingestion.
const indexWorkers = 4

// Engine wires the full retrieval pipeline together.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	passages store.PassageStore
	lexical  *store.BM25Index
	vectors  store.VectorSearcher
	embedder embed.Embedder
	expander *expand.Expander
	selector *strategy.Selector
	fusion   *search.RRFFusion
	fuser    *search.ResultFuser
	reranker search.Reranker
	cache    *cache.MultiLevel
	now      func() time.Time
}

// Option adjusts engine construction, mainly to inject fakes in tests.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics wires pipeline counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithEmbedder replaces the configured embedding backend.
func WithEmbedder(em embed.Embedder) Option {
	return func(e *Engine) { e.embedder = em }
}

// WithVectorSearcher replaces the vector backend.
func WithVectorSearcher(vs store.VectorSearcher) Option {
	return func(e *Engine) { e.vectors = vs }
}

// WithPassageStore replaces the passage store.
func WithPassageStore(ps store.PassageStore) Option {
	return func(e *Engine) { e.passages = ps }
}

// WithCache replaces the result cache. Passing nil disables caching.
func WithCache(c *cache.MultiLevel) Option {
	return func(e *Engine) { e.cache = c }
}

// WithClock injects a time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine from config, applying options over the configured
// defaults. Previously persisted passages are reindexed so lexical and
// vector state survive restarts.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "engine config")
	}

	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.lexical = store.NewBM25Index(store.BM25Config{
		K1:        cfg.Search.BM25K1,
		B:         cfg.Search.BM25B,
		StopWords: cfg.Search.StopWords,
	})

	if e.embedder == nil {
		e.embedder = embed.NewFromConfig(ctx, cfg.Embeddings, e.logger)
	}

	if e.vectors == nil {
		hnsw, err := store.NewHNSWStore(store.DefaultVectorConfig(e.embedder.Dimensions()))
		if err != nil {
			return nil, err
		}
		guard := store.DefaultGuardConfig()
		guard.Name = "vectors"
		e.vectors = store.NewGuardedVectorSearcher(hnsw, guard, e.logger)
	}

	if e.passages == nil {
		ps, err := store.NewSQLitePassageStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		e.passages = ps
	}

	analyzer := expand.NewAnalyzer(e.lexical.Tokenizer(), expand.AnalyzerConfig{
		ComplexKeywords:  cfg.Strategy.ComplexKeywords,
		QuestionKeywords: cfg.Strategy.QuestionKeywords,
		LongQueryTerms:   cfg.Strategy.LongQueryTerms,
	})

	selector, err := strategy.NewSelector(cfg.Strategy, analyzer, e.logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "strategy config")
	}
	e.selector = selector

	if cfg.Expansion.Enabled {
		expOpts := []expand.Option{expand.WithLogger(e.logger)}
		if cfg.Expansion.LLMEndpoint != "" {
			expOpts = append(expOpts, expand.WithLLM(expand.NewLLMExpander(expand.LLMConfig{
				Endpoint: cfg.Expansion.LLMEndpoint,
				Model:    cfg.Expansion.LLMModel,
				Timeout:  cfg.Expansion.LLMTimeout,
				MaxLines: cfg.Expansion.MaxVariants,
			})))
		}
		e.expander = expand.New(analyzer, expand.Config{
			MaxVariants:   cfg.Expansion.MaxVariants,
			MinConfidence: cfg.Expansion.MinConfidence,
			CacheSize:     cfg.Expansion.CacheSize,
		}, expOpts...)
	}

	e.fusion = search.NewRRFFusion(cfg.Search.RRFConstant)
	e.fuser = search.NewResultFuser(cfg.Search.QualityField, cfg.Search.QualityBonusCap, cfg.Search.PerDocCap)
	e.reranker = search.NewHeuristicReranker(e.lexical.Tokenizer())

	if e.cache == nil && cfg.Cache.Enabled {
		cacheOpts := []cache.Option{cache.WithLogger(e.logger), cache.WithClock(e.now)}
		if e.metrics != nil {
			cacheOpts = append(cacheOpts, cache.WithMetrics(e.metrics))
		}
		if cfg.Cache.Redis.Addr != "" {
			l2, err := cache.NewRedisL2(ctx, cfg.Cache.Redis, e.now)
			if err != nil {
				return nil, err
			}
			cacheOpts = append(cacheOpts, cache.WithL2(l2))
		}
		c, err := cache.New(cfg.Cache, cacheOpts...)
		if err != nil {
			return nil, err
		}
		e.cache = c
	}

	if err := e.reloadPersisted(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// reloadPersisted rebuilds the in-memory lexical and vector state from the
// passage store after a restart.
func (e *Engine) reloadPersisted(ctx context.Context) error {
	passages, err := e.passages.AllPassages(ctx)
	if err != nil {
		return err
	}
	if len(passages) == 0 {
		return nil
	}

	if err := e.lexical.Add(passages); err != nil {
		return err
	}
	if err := e.embedAndUpsert(ctx, passages); err != nil {
		return err
	}
	e.setIndexedGauge()

	e.logger.Info("index_restored",
		slog.Int("passages", len(passages)))
	return nil
}

// Index adds or replaces passages across the lexical index, the vector
// backend and the passage store, then invalidates cached results that cite
// the affected documents.
func (e *Engine) Index(ctx context.Context, passages []*store.Passage) error {
	if len(passages) == 0 {
		return nil
	}
	for _, p := range passages {
		if p == nil || p.ChunkID == "" {
			return errors.New(errors.ErrCodeInvalidInput, "passage without chunk ID")
		}
		if p.Content == "" {
			return errors.New(errors.ErrCodeInvalidInput, "passage without content").
				WithContext("chunk_id", p.ChunkID)
		}
	}

	now := e.now()
	for _, p := range passages {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
	}

	if err := e.embedAndUpsert(ctx, passages); err != nil {
		return err
	}
	if err := e.lexical.Add(passages); err != nil {
		return err
	}
	if err := e.passages.SavePassages(ctx, passages); err != nil {
		return err
	}
	e.setIndexedGauge()

	if e.cache != nil {
		tags := docTags(passages)
		if n := e.cache.InvalidateByTags(ctx, tags); n > 0 {
			e.logger.Debug("cache_invalidated_on_index",
				slog.Int("entries", n))
		}
	}

	e.logger.Info("passages_indexed",
		slog.Int("count", len(passages)))
	return nil
}

// embedAndUpsert embeds passage contents in bounded parallel batches and
// writes the vectors to the backend.
func (e *Engine) embedAndUpsert(ctx context.Context, passages []*store.Passage) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(indexWorkers)

	for start := 0; start < len(passages); start += indexBatchSize {
		batch := passages[start:min(start+indexBatchSize, len(passages))]
		g.Go(func() error {
			ids := make([]string, len(batch))
			texts := make([]string, len(batch))
			metas := make([]store.Metadata, len(batch))
			for i, p := range batch {
				ids[i] = p.ChunkID
				texts[i] = p.Content
				metas[i] = p.Metadata
			}
			vecs, err := e.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "embed passages")
			}
			return e.vectors.Upsert(gctx, ids, vecs, metas)
		})
	}
	return g.Wait()
}

// Remove deletes one passage everywhere and invalidates cached results
// citing its document.
func (e *Engine) Remove(ctx context.Context, chunkID string) error {
	if chunkID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "empty chunk ID")
	}

	p, err := e.passages.GetPassage(ctx, chunkID)
	if err != nil {
		return err
	}

	e.lexical.Remove(chunkID)
	if err := e.vectors.Delete(ctx, []string{chunkID}); err != nil {
		return err
	}
	if err := e.passages.DeletePassage(ctx, chunkID); err != nil {
		return err
	}
	e.setIndexedGauge()

	if e.cache != nil && p != nil {
		e.cache.InvalidateByTags(ctx, []string{docTag(p.DocID)})
	}

	e.logger.Info("passage_removed",
		slog.String("chunk_id", chunkID))
	return nil
}

// InvalidateCache removes cached results by tags, or everything when no
// tags are given. Returns the number of removed entries (zero for a full
// clear).
func (e *Engine) InvalidateCache(ctx context.Context, tags []string) int {
	if e.cache == nil {
		return 0
	}
	if len(tags) == 0 {
		e.cache.Clear(ctx)
		return 0
	}
	return e.cache.InvalidateByTags(ctx, tags)
}

// CacheStats reports per-tier entry counts, all zero when caching is off.
func (e *Engine) CacheStats(ctx context.Context) cache.Stats {
	if e.cache == nil {
		return cache.Stats{}
	}
	return e.cache.Stats(ctx)
}

// LexicalStats exposes the lexical index state.
func (e *Engine) LexicalStats() store.LexicalStats {
	return e.lexical.Stats()
}

// Close releases the engine's backends.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.vectors.Close(); err != nil {
		firstErr = err
	}
	if err := e.passages.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (e *Engine) setIndexedGauge() {
	if e.metrics != nil {
		e.metrics.IndexedPassages.Set(float64(e.lexical.Stats().DocumentCount))
	}
}

func docTag(docID string) string {
	return "doc:" + docID
}

func docTags(passages []*store.Passage) []string {
	seen := make(map[string]struct{}, len(passages))
	tags := make([]string, 0, len(passages))
	for _, p := range passages {
		if _, dup := seen[p.DocID]; dup {
			continue
		}
		seen[p.DocID] = struct{}{}
		tags = append(tags, docTag(p.DocID))
	}
	return tags
}

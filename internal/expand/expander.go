package expand

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config configures the expander.
type Config struct {
	// MaxVariants caps the final variant list.
	MaxVariants int

	// MinConfidence drops weaker variants.
	MinConfidence float64

	// CacheSize is the expansion LRU capacity.
	CacheSize int
}

// DefaultConfig returns expander defaults.
func DefaultConfig() Config {
	return Config{
		MaxVariants:   3,
		MinConfidence: 0.5,
		CacheSize:     512,
	}
}

// Expander orchestrates query expansion: analyze, try the LLM, fall back to
// rules, then filter, deduplicate, cap, and cache the result. Expansion never
// fails; an empty variant list is a valid outcome.
type Expander struct {
	analyzer *Analyzer
	rules    *RuleExpander
	llm      *LLMExpander // nil when disabled
	cfg      Config
	cache    *lru.Cache[string, []Variant]
	logger   *slog.Logger
}

// Option configures the Expander.
type Option func(*Expander)

// WithLLM enables the LLM expansion path.
func WithLLM(llm *LLMExpander) Option {
	return func(e *Expander) { e.llm = llm }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Expander) { e.logger = logger }
}

// New creates an Expander.
func New(analyzer *Analyzer, cfg Config, opts ...Option) *Expander {
	if cfg.MaxVariants <= 0 {
		cfg.MaxVariants = DefaultConfig().MaxVariants
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	cache, _ := lru.New[string, []Variant](cfg.CacheSize)

	e := &Expander{
		analyzer: analyzer,
		rules:    NewRuleExpander(),
		cfg:      cfg,
		cache:    cache,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand generates variants for query. Cached expansions are reused; the
// cache key is the normalized query text.
func (e *Expander) Expand(ctx context.Context, query string) *Expansion {
	analysis := e.analyzer.Analyze(query)
	key := strings.ToLower(strings.TrimSpace(query))

	if cached, ok := e.cache.Get(key); ok {
		variants := make([]Variant, len(cached))
		copy(variants, cached)
		for i := range variants {
			variants[i].Source = SourceCache
		}
		return &Expansion{Original: query, Variants: variants, Analysis: analysis}
	}

	var variants []Variant
	if e.llm != nil {
		llmVariants, err := e.llm.Expand(ctx, query)
		if err != nil {
			e.logger.Warn("llm_expansion_failed",
				slog.String("query", query),
				slog.String("error", err.Error()))
		} else {
			variants = llmVariants
		}
	}
	if len(variants) == 0 {
		variants = e.rules.Expand(query, analysis)
	}

	variants = e.finalize(query, variants)
	e.cache.Add(key, variants)

	return &Expansion{Original: query, Variants: variants, Analysis: analysis}
}

// finalize filters by confidence, deduplicates against the original and each
// other, sorts by confidence, and caps the list.
func (e *Expander) finalize(original string, variants []Variant) []Variant {
	seen := map[string]struct{}{
		strings.ToLower(strings.TrimSpace(original)): {},
	}
	kept := make([]Variant, 0, len(variants))
	for _, v := range variants {
		text := strings.TrimSpace(v.Text)
		if text == "" || v.Confidence < e.cfg.MinConfidence {
			continue
		}
		lower := strings.ToLower(text)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		v.Text = text
		kept = append(kept, v)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})

	if len(kept) > e.cfg.MaxVariants {
		kept = kept[:e.cfg.MaxVariants]
	}
	return kept
}

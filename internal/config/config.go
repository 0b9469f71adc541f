// Package config loads and validates the engine configuration.
//
// Precedence, lowest to highest:
//  1. Built-in defaults
//  2. YAML config file (seekly.yaml)
//  3. SEEKLY_* environment variable overrides
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete engine configuration.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Expansion  ExpansionConfig  `yaml:"expansion"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Cache      CacheConfig      `yaml:"cache"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// SearchConfig configures lexical scoring and hybrid fusion.
type SearchConfig struct {
	// BM25K1 is the term-frequency saturation parameter.
	BM25K1 float64 `yaml:"bm25_k1"`

	// BM25B is the length-normalization parameter.
	BM25B float64 `yaml:"bm25_b"`

	// StopWords overrides the built-in bilingual stop-word list.
	StopWords []string `yaml:"stop_words"`

	// RRFConstant is the rank-fusion smoothing constant. Higher values
	// reduce the impact of rank differences between lists.
	RRFConstant int `yaml:"rrf_constant"`

	// QualityField names the metadata field carrying a document quality
	// signal in [0,1]. Empty disables the quality bonus.
	QualityField string `yaml:"quality_field"`

	// QualityBonusCap limits how much the quality signal can add to a
	// fused score.
	QualityBonusCap float64 `yaml:"quality_bonus_cap"`

	// PerDocCap is the maximum number of passages per source document in
	// a final result list.
	PerDocCap int `yaml:"per_doc_cap"`

	// MaxQueryLength rejects unreasonably long queries.
	MaxQueryLength int `yaml:"max_query_length"`
}

// ExpansionConfig configures query expansion.
type ExpansionConfig struct {
	// Enabled toggles expansion entirely.
	Enabled bool `yaml:"enabled"`

	// MaxVariants caps the number of generated query variants.
	MaxVariants int `yaml:"max_variants"`

	// MinConfidence drops low-confidence variants.
	MinConfidence float64 `yaml:"min_confidence"`

	// LLMEndpoint is the generation endpoint. Empty disables the LLM
	// expander and uses the rule-based one only.
	LLMEndpoint string `yaml:"llm_endpoint"`

	// LLMModel is the generation model name.
	LLMModel string `yaml:"llm_model"`

	// LLMTimeout bounds a single generation call.
	LLMTimeout time.Duration `yaml:"llm_timeout"`

	// CacheSize is the expansion LRU cache capacity.
	CacheSize int `yaml:"cache_size"`
}

// StrategyConfig configures adaptive strategy selection.
type StrategyConfig struct {
	// DefaultMode is used when the caller does not force a mode
	// (fast, accurate, comprehensive).
	DefaultMode string `yaml:"default_mode"`

	// ComplexKeywords upgrade a query to COMPREHENSIVE when present.
	ComplexKeywords []string `yaml:"complex_keywords"`

	// QuestionKeywords mark analytical questions that upgrade FAST to
	// ACCURATE.
	QuestionKeywords []string `yaml:"question_keywords"`

	// LongQueryTerms is the term count at which a query counts as complex.
	LongQueryTerms int `yaml:"long_query_terms"`

	// Profiles override the built-in per-mode retrieval parameters.
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig is the per-mode retrieval parameter set. The stage toggles
// are pointers so a partial override leaves the built-in values alone.
type ProfileConfig struct {
	TopK            int           `yaml:"top_k"`
	CandidateFactor int           `yaml:"candidate_factor"`
	UseExpansion    *bool         `yaml:"use_expansion,omitempty"`
	UseSemantic     *bool         `yaml:"use_semantic,omitempty"`
	UseRerank       *bool         `yaml:"use_rerank,omitempty"`
	Timeout         time.Duration `yaml:"timeout"`
}

// CacheConfig configures the multi-level response cache.
type CacheConfig struct {
	// Enabled toggles caching entirely.
	Enabled bool `yaml:"enabled"`

	// L1Size is the exact-match LRU capacity.
	L1Size int `yaml:"l1_size"`

	// L1MinConfidence gates which responses may enter L1.
	L1MinConfidence float64 `yaml:"l1_min_confidence"`

	// L2Size and L2TTL configure the scored TTL tier.
	L2Size int           `yaml:"l2_size"`
	L2TTL  time.Duration `yaml:"l2_ttl"`

	// L3Size and L3SimilarityThreshold configure the semantic tier.
	L3Size                int     `yaml:"l3_size"`
	L3SimilarityThreshold float64 `yaml:"l3_similarity_threshold"`

	// MinWriteConfidence gates cache writes across all tiers.
	MinWriteConfidence float64 `yaml:"min_write_confidence"`

	// PromoteHitsPerHour is the L2 hit rate that promotes an entry to L1.
	PromoteHitsPerHour float64 `yaml:"promote_hits_per_hour"`

	// Redis selects a Redis-backed L2 tier when Addr is set.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the optional Redis L2 backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// KeyPrefix namespaces engine keys in a shared instance.
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static". Static is a deterministic local
	// fallback that needs no external service.
	Provider string `yaml:"provider"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// Dimensions is the embedding width.
	Dimensions int `yaml:"dimensions"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host"`

	// Timeout bounds a single embedding call.
	Timeout time.Duration `yaml:"timeout"`

	// CacheSize is the embedding LRU cache capacity.
	CacheSize int `yaml:"cache_size"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	// Path is the passage database path. Empty means in-memory only.
	Path string `yaml:"path"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
	Stderr   bool   `yaml:"stderr"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Search: SearchConfig{
			BM25K1:          1.5,
			BM25B:           0.75,
			RRFConstant:     60,
			QualityField:    "quality",
			QualityBonusCap: 0.3,
			PerDocCap:       3,
			MaxQueryLength:  2000,
		},
		Expansion: ExpansionConfig{
			Enabled:       true,
			MaxVariants:   3,
			MinConfidence: 0.5,
			LLMModel:      "qwen2.5:3b",
			LLMTimeout:    10 * time.Second,
			CacheSize:     512,
		},
		Strategy: StrategyConfig{
			DefaultMode: "accurate",
			ComplexKeywords: []string{
				"compare", "difference", "versus", "relationship", "impact",
				"vergleich", "unterschied", "zusammenhang",
			},
			QuestionKeywords: []string{
				"why", "how", "explain", "warum", "wieso", "erkläre",
			},
			LongQueryTerms: 12,
		},
		Cache: CacheConfig{
			Enabled:               true,
			L1Size:                256,
			L1MinConfidence:       0.9,
			L2Size:                2048,
			L2TTL:                 time.Hour,
			L3Size:                1024,
			L3SimilarityThreshold: 0.85,
			MinWriteConfidence:    0.7,
			PromoteHitsPerHour:    2.0,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Dimensions: 768,
			OllamaHost: "http://localhost:11434",
			Timeout:    30 * time.Second,
			CacheSize:  4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Stderr: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Load reads configuration from path (optional), applies environment
// overrides, validates, and returns the result. An empty path loads
// defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies SEEKLY_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEEKLY_RRF_CONSTANT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.RRFConstant = n
		}
	}
	if v := os.Getenv("SEEKLY_DEFAULT_MODE"); v != "" {
		c.Strategy.DefaultMode = strings.ToLower(v)
	}
	if v := os.Getenv("SEEKLY_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SEEKLY_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("SEEKLY_REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("SEEKLY_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SEEKLY_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SEEKLY_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Cache.Enabled = b
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.BM25K1 <= 0 {
		return fmt.Errorf("search.bm25_k1 must be positive, got %g", c.Search.BM25K1)
	}
	if c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return fmt.Errorf("search.bm25_b must be in [0,1], got %g", c.Search.BM25B)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.QualityBonusCap < 0 {
		return fmt.Errorf("search.quality_bonus_cap must not be negative, got %g", c.Search.QualityBonusCap)
	}
	if c.Search.PerDocCap <= 0 {
		return fmt.Errorf("search.per_doc_cap must be positive, got %d", c.Search.PerDocCap)
	}

	switch c.Strategy.DefaultMode {
	case "fast", "accurate", "comprehensive":
	default:
		return fmt.Errorf("strategy.default_mode must be fast, accurate or comprehensive, got %q", c.Strategy.DefaultMode)
	}

	if c.Cache.L3SimilarityThreshold < 0 || c.Cache.L3SimilarityThreshold > 1 {
		return fmt.Errorf("cache.l3_similarity_threshold must be in [0,1], got %g", c.Cache.L3SimilarityThreshold)
	}
	if c.Cache.MinWriteConfidence < 0 || c.Cache.MinWriteConfidence > 1 {
		return fmt.Errorf("cache.min_write_confidence must be in [0,1], got %g", c.Cache.MinWriteConfidence)
	}
	if c.Cache.L1MinConfidence < c.Cache.MinWriteConfidence {
		return fmt.Errorf("cache.l1_min_confidence (%g) must not be below cache.min_write_confidence (%g)",
			c.Cache.L1MinConfidence, c.Cache.MinWriteConfidence)
	}

	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be ollama or static, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}

	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

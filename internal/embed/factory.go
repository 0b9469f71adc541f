package embed

import (
	"context"
	"log/slog"

	"github.com/seekly/seekly/internal/config"
)

// NewFromConfig builds the configured embedder, wrapped in an LRU cache.
// When the Ollama backend is configured but not reachable, the static
// embedder takes over so indexing and search keep working offline.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) Embedder {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	switch cfg.Provider {
	case "static":
		inner = NewStaticEmbedder(cfg.Dimensions)
	default:
		ollama := NewOllamaEmbedder(OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
		if ollama.Available(ctx) {
			inner = ollama
		} else {
			logger.Warn("embedding_backend_unavailable",
				slog.String("host", cfg.OllamaHost),
				slog.String("fallback", "static-hash"))
			_ = ollama.Close()
			inner = NewStaticEmbedder(cfg.Dimensions)
		}
	}

	logger.Info("embedder_ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, cfg.CacheSize)
}

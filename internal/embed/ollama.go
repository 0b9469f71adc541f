package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/seekly/seekly/internal/errors"
)

// Ollama defaults.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultDimensions  = 768
	DefaultTimeout     = 30 * time.Second
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Retry      errors.RetryConfig
}

// OllamaEmbedder generates embeddings via Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder. No health check is performed
// here; callers probe with Available when they need to choose a provider.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = errors.DefaultRetryConfig()
	}

	// Per-request timeouts come from context; a client-level timeout would
	// override them.
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}
	return &OllamaEmbedder{
		client: &http.Client{Transport: transport},
		config: cfg,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request, with
// transient-failure retry.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	return errors.RetryWithResult(ctx, e.config.Retry, func() ([][]float32, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
		return e.doEmbed(callCtx, texts)
	})
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "encode embed request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "create embed request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(err, errors.ErrCodeBackendTimeout, "embedding request timed out")
		}
		return nil, errors.Wrap(err, errors.ErrCodeBackendUnavailable, "embedding backend unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 {
			return nil, errors.Newf(errors.ErrCodeBackendUnavailable, "embedding backend returned %d: %s", resp.StatusCode, raw)
		}
		return nil, errors.Newf(errors.ErrCodeEmbeddingFailed, "embedding request rejected with %d: %s", resp.StatusCode, raw)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "decode embed response")
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
			"embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(decoded.Embeddings))
	}

	for i, vec := range decoded.Embeddings {
		decoded.Embeddings[i] = normalizeVector(vec)
		if len(vec) != e.config.Dimensions {
			return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
				"unexpected embedding width %d, want %d", len(vec), e.config.Dimensions)
		}
	}
	return decoded.Embeddings, nil
}

// Dimensions returns the embedding width.
func (e *OllamaEmbedder) Dimensions() int { return e.config.Dimensions }

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.config.Model }

// Available probes the Ollama API.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

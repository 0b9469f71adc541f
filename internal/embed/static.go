package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// StaticDimensions is the default width of hash-based embeddings.
const StaticDimensions = 256

// Hash embedding weights.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var staticTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates hash-based embeddings. It needs no network and no
// model download, is fully deterministic, and trades semantic quality for
// availability. Used as the fallback provider and in tests.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with the given width.
// A non-positive width uses StaticDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates a deterministic embedding for text.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(strings.ToLower(text))
	if trimmed == "" {
		return make([]float32, e.dims), nil
	}

	vector := make([]float32, e.dims)

	// Tokens carry most of the signal, character trigrams smooth over
	// morphology (cat/cats share two trigrams).
	for _, token := range staticTokenRegex.FindAllString(trimmed, -1) {
		vector[hashToIndex(token, e.dims)] += tokenWeight
	}
	compact := strings.Join(staticTokenRegex.FindAllString(trimmed, -1), " ")
	for _, ngram := range extractNgrams(compact, ngramSize) {
		vector[hashToIndex(ngram, e.dims)] += ngramWeight
	}

	return normalizeVector(vector), nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the embedding width.
func (e *StaticEmbedder) Dimensions() int { return e.dims }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return "static-hash" }

// Available always reports true; the static embedder has no dependencies.
func (e *StaticEmbedder) Available(ctx context.Context) bool { return true }

// Close is a no-op.
func (e *StaticEmbedder) Close() error { return nil }

func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}

func extractNgrams(s string, n int) []string {
	runes := []rune(s)
	if len(runes) < n {
		return nil
	}
	ngrams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		ngrams = append(ngrams, string(runes[i:i+n]))
	}
	return ngrams
}

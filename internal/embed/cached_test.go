package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder tracks provider calls to verify cache behavior.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls int
	batchCalls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderServesRepeatsFromCache(t *testing.T) {
	// Given a cached embedder over a counting provider
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 16)
	ctx := context.Background()

	// When embedding the same text twice
	first, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "repeated query")
	require.NoError(t, err)

	// Then the provider ran once and both results are identical
	assert.Equal(t, 1, inner.embedCalls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedderBatchOnlyEmbedsMisses(t *testing.T) {
	// Given one text already cached
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 16)
	ctx := context.Background()
	_, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)

	// When batch-embedding a mix of cached and new texts
	vecs, err := cached.EmbedBatch(ctx, []string{"warm", "cold one", "cold two"})
	require.NoError(t, err)

	// Then the provider only saw the misses
	require.Len(t, vecs, 3)
	assert.Equal(t, 1, inner.batchCalls)
	assert.Equal(t, 3, cached.Len())

	warm, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)
	assert.Equal(t, warm, vecs[0])
}

func TestCachedEmbedderEvictsAtCapacity(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(32)}
	cached := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c"} {
		_, err := cached.Embed(ctx, q)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, cached.Len())
}

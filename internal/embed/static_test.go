package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "the cat sat on the mat")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the cat sat on the mat")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedderUnitLength(t *testing.T) {
	e := NewStaticEmbedder(64)

	vec, err := e.Embed(context.Background(), "hybrid retrieval engine")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedderEmptyInputIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(32)

	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)

	assert.Len(t, vec, 32)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedderSimilarTextsCloser(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	cat, err := e.Embed(ctx, "cats are pets")
	require.NoError(t, err)
	catAgain, err := e.Embed(ctx, "cats are great pets")
	require.NoError(t, err)
	unrelated, err := e.Embed(ctx, "quantum flux capacitor calibration")
	require.NoError(t, err)

	assert.Greater(t, dot(cat, catAgain), dot(cat, unrelated))
}

func TestStaticEmbedderBatch(t *testing.T) {
	e := NewStaticEmbedder(0)

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)

	require.Len(t, vecs, 2)
	single, err := e.Embed(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, single, vecs[0])
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWUpsertAndSearch(t *testing.T) {
	// Given three stored vectors
	s := newTestVectorStore(t)
	ctx := context.Background()
	err := s.Upsert(ctx,
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())

	// When searching near the first vector
	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)

	// Then the closest IDs come back, highest similarity first
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWDimensionMismatch(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, []string{"a"}, [][]float32{{1, 0}}, nil)
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = s.Search(ctx, []float32{1, 0}, 1, nil)
	require.ErrorAs(t, err, &dimErr)
}

func TestHNSWSearchEmptyStore(t *testing.T) {
	s := newTestVectorStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5, nil)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWUpsertReplacesExisting(t *testing.T) {
	// Given a stored vector
	s := newTestVectorStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, []string{"a"}, [][]float32{{1, 0, 0, 0}}, nil))

	// When upserting the same ID pointing elsewhere
	require.NoError(t, s.Upsert(ctx, []string{"a"}, [][]float32{{0, 0, 0, 1}}, nil))

	// Then the count stays at one and search reflects the new vector
	assert.Equal(t, 1, s.Count())
	results, err := s.Search(ctx, []float32{0, 0, 0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWDeleteHidesVector(t *testing.T) {
	// Given two stored vectors
	s := newTestVectorStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}, nil))

	// When deleting one
	require.NoError(t, s.Delete(ctx, []string{"a"}))

	// Then it no longer appears in results
	assert.Equal(t, 1, s.Count())
	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ID)
	}

	// And deleting an unknown ID is a no-op
	require.NoError(t, s.Delete(ctx, []string{"missing"}))
}

func TestHNSWSearchWithMetadataFilter(t *testing.T) {
	// Given vectors tagged with a source field
	s := newTestVectorStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx,
		[]string{"a", "b", "c"},
		[][]float32{
			{1, 0, 0, 0},
			{0.95, 0.05, 0, 0},
			{0.9, 0.1, 0, 0},
		},
		[]Metadata{
			{"source": String("wiki")},
			{"source": String("blog")},
			{"source": String("wiki")},
		}))

	// When searching with a source filter
	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2, Filter{"source": String("wiki")})

	// Then only matching vectors are returned, still ranked by similarity
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
}

func TestHNSWClosedStoreRejectsOperations(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Search(context.Background(), []float32{1, 0, 0, 0}, 1, nil)
	assert.Error(t, err)
	assert.Error(t, s.Upsert(context.Background(), []string{"a"}, [][]float32{{1, 0, 0, 0}}, nil))
	assert.Equal(t, 0, s.Count())
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

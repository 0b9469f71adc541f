package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"
)

// VectorConfig configures the in-process vector store.
type VectorConfig struct {
	// Dimensions is the embedding width.
	Dimensions int

	// M is the HNSW max connections per layer (default: 16).
	M int

	// EfSearch is the HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultVectorConfig returns sensible defaults for the vector store.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   20,
	}
}

// HNSWStore is the default in-process implementation of VectorSearcher,
// backed by the coder/hnsw pure-Go graph with cosine distance.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorConfig

	// ID mapping (string <-> uint64) and per-ID metadata for filtering.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	meta    map[string]Metadata
	nextKey uint64

	closed bool
}

// NewHNSWStore creates a new HNSW-backed vector store.
func NewHNSWStore(cfg VectorConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector store requires positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		meta:   make(map[string]Metadata),
	}, nil
}

// Upsert inserts or replaces vectors. Existing IDs are lazily deleted: the
// old graph node is orphaned rather than removed, which sidesteps coder/hnsw
// issues with deleting the last node.
func (s *HNSWStore) Upsert(ctx context.Context, ids []string, vectors [][]float32, metadata []Metadata) error {
	if len(ids) == 0 {
		return nil
	}
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if metadata != nil && len(metadata) != len(ids) {
		return fmt.Errorf("ids and metadata length mismatch: %d vs %d", len(ids), len(metadata))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[id] = key
		s.keyMap[key] = id
		if metadata != nil {
			s.meta[id] = metadata[i]
		}
	}

	return nil
}

// Search finds the k nearest neighbors to the query vector. When a filter is
// supplied, the graph is oversampled and non-matching IDs are dropped.
func (s *HNSWStore) Search(ctx context.Context, query []float32, k int, filter Filter) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return []*VectorResult{}, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	fetch := k
	if len(filter) > 0 {
		fetch = k * 4
	}
	if max := len(s.idMap); fetch > max {
		fetch = max
	}

	nodes := s.graph.Search(normalized, fetch)

	results := make([]*VectorResult, 0, k)
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue // lazily deleted
		}
		if len(filter) > 0 && !filter.Matches(s.meta[id]) {
			continue
		}

		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, &VectorResult{
			ID:    id,
			Score: 1.0 - distance/2.0,
		})
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Delete removes vectors by ID using lazy deletion.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.meta, id)
		}
	}

	return nil
}

// Count returns the number of active vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Close marks the store closed.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Verify interface implementation.
var _ VectorSearcher = (*HNSWStore)(nil)

// normalizeVectorInPlace scales v to unit length for cosine similarity.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 when either vector is zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

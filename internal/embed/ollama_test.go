package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekly/seekly/internal/config"
	"github.com/seekly/seekly/internal/errors"
)

func fastRetry() errors.RetryConfig {
	return errors.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2.0}
}

func TestOllamaEmbedBatch(t *testing.T) {
	// Given a fake Ollama API
	var gotReq embedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: [][]float32{{3, 4}, {0, 5}},
		})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "test-model", Dimensions: 2, Retry: fastRetry()})

	// When embedding two texts
	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two"})

	// Then the request carried the model and the vectors come back normalized
	require.NoError(t, err)
	assert.Equal(t, "test-model", gotReq.Model)
	require.Len(t, vecs, 2)
	assert.InDelta(t, 0.6, float64(vecs[0][0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vecs[0][1]), 1e-6)
}

func TestOllamaEmbedRetriesServerErrors(t *testing.T) {
	// Given a backend that fails once with a 500
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimensions: 2, Retry: fastRetry()})

	vecs, err := e.Embed(context.Background(), "query")

	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 2, calls)
}

func TestOllamaEmbedDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimensions: 2, Retry: fastRetry()})

	_, err := e.Embed(context.Background(), "query")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmbeddingFailed, errors.GetCode(err))
	assert.Equal(t, 1, calls)
}

func TestOllamaEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{1, 0}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimensions: 2, Retry: fastRetry()})

	_, err := e.EmbedBatch(context.Background(), []string{"one", "two"})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmbeddingFailed, errors.GetCode(err))
}

func TestOllamaAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	up := NewOllamaEmbedder(OllamaConfig{Host: srv.URL})
	assert.True(t, up.Available(context.Background()))

	down := NewOllamaEmbedder(OllamaConfig{Host: "http://127.0.0.1:1"})
	assert.False(t, down.Available(context.Background()))
}

func TestNewFromConfigFallsBackToStatic(t *testing.T) {
	cfg := config.Default().Embeddings
	cfg.OllamaHost = "http://127.0.0.1:1"

	e := NewFromConfig(context.Background(), cfg, nil)
	defer e.Close()

	assert.Equal(t, "static-hash", e.ModelName())
}

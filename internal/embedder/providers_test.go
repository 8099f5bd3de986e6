package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_GenerateBatch(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultJinaModel, req.Model)

		// answer out of order to exercise index mapping
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		var data []item
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, item{Index: i, Embedding: []float32{float32(i), 1}})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "data": data})
	}))
	defer server.Close()

	p, err := NewJinaProvider(ProviderConfig{APIKey: "test-key", BaseURL: server.URL}, NewCache(10))
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 2)
	assert.Equal(t, []float32{0, 1}, resp.Embeddings[0].Vector)
	assert.Equal(t, []float32{1, 1}, resp.Embeddings[1].Vector)
	assert.Equal(t, ProviderJina, resp.Provider)

	// cached texts cost no call
	_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			p, err := NewOpenAIProvider(ProviderConfig{APIKey: "k", BaseURL: server.URL}, nil)
			require.NoError(t, err)

			_, err = p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
			require.Error(t, err)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Contains(t, apiErr.Body, "nope")
		})
	}
}

func TestHTTPProvider_CustomModelDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-large", req.Model)

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"index": i, "embedding": []float32{1, 2, 3}}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "data": data})
	}))
	defer server.Close()

	t.Run("learned from first response", func(t *testing.T) {
		p, err := NewOpenAIProvider(ProviderConfig{APIKey: "k", BaseURL: server.URL, Model: "text-embedding-3-large"}, nil)
		require.NoError(t, err)
		assert.Zero(t, p.Dimension())

		pipeline := NewPipeline(p, PipelineConfig{Workers: 1, Retry: fastRetry(), CallTimeout: time.Second}, nil, nil)
		vec, err := pipeline.EmbedQuery(context.Background(), "query")
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, vec)
		assert.Equal(t, 3, p.Dimension())
	})

	t.Run("configured dimension", func(t *testing.T) {
		p, err := NewOpenAIProvider(ProviderConfig{APIKey: "k", BaseURL: server.URL, Model: "text-embedding-3-large", Dimension: 3072}, nil)
		require.NoError(t, err)
		assert.Equal(t, 3072, p.Dimension())

		pipeline := NewPipeline(p, PipelineConfig{Workers: 1, Retry: fastRetry(), CallTimeout: time.Second}, nil, nil)
		_, err = pipeline.EmbedQuery(context.Background(), "query")
		assert.ErrorIs(t, err, ErrProviderFailed, "vectors must match a configured dimension")
	})

	t.Run("default model keeps its dimension", func(t *testing.T) {
		p, err := NewOpenAIProvider(ProviderConfig{APIKey: "k", BaseURL: server.URL}, nil)
		require.NoError(t, err)
		assert.Equal(t, OpenAIDimension, p.Dimension())
	})
}

func TestNewProvider_MissingKey(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "")
	_, err := NewOpenAIProvider(ProviderConfig{}, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLocalProvider(t *testing.T) {
	p, err := NewLocalProvider(nil)
	require.NoError(t, err)

	ctx := context.Background()
	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "fn parse_config(path: &str)"})
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "fn parse_config(path: &str)"})
	require.NoError(t, err)

	assert.Len(t, a.Vector, LocalDimension)
	assert.Equal(t, a.Vector, b.Vector, "local embeddings are deterministic")

	var norm float32
	for _, v := range a.Vector {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-4)
}

func TestNewFromConfig(t *testing.T) {
	emb, err := New(Config{Provider: "LOCAL"})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	_, err = New(Config{Provider: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestDetectProvider(t *testing.T) {
	t.Setenv(EnvEmbeddingProvider, "")
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
	assert.Equal(t, ProviderLocal, DetectProvider())

	t.Setenv(EnvOpenAIAPIKey, "k")
	assert.Equal(t, ProviderOpenAI, DetectProvider())

	t.Setenv(EnvJinaAPIKey, "k")
	assert.Equal(t, ProviderJina, DetectProvider())

	t.Setenv(EnvEmbeddingProvider, "Local")
	assert.Equal(t, ProviderLocal, DetectProvider())
}

package embedder

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrProviderFailed  = errors.New("embedding provider failed")
	ErrUnknownProvider = errors.New("unknown embedding provider")
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrBatchTooLarge   = errors.New("batch size exceeds limit")
	ErrMissingAPIKey   = errors.New("embedding api key not set")
)

// Embedding is one vector as returned by a provider
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
}

type EmbeddingRequest struct {
	Text string
}

type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse holds one embedding per requested text, in request
// order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns chunk or query text into vectors. Implementations make a
// single attempt per call; the Pipeline owns retry, rate limiting and
// per-call timeouts.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch embeds all texts in one upstream call
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension is the vector length, or 0 while it is not yet known
	Dimension() int

	Provider() string

	// Model names the vector space. It is part of every chunk id, so
	// vectors of different models never mix.
	Model() string

	Close() error
}

const defaultCacheSize = 10000

type cacheKey struct {
	model string
	sum   [32]byte
}

// Cache keeps recently embedded texts in memory so re-chunked files and
// repeated queries skip the provider. Entries are scoped by model.
type Cache struct {
	vectors *lru.Cache[cacheKey, []float32]
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	vectors, err := lru.New[cacheKey, []float32](size)
	if err != nil {
		vectors, _ = lru.New[cacheKey, []float32](defaultCacheSize)
	}
	return &Cache{vectors: vectors}
}

func keyFor(model, text string) cacheKey {
	return cacheKey{model: model, sum: sha256.Sum256([]byte(text))}
}

// Get returns a copy of the vector cached for text under model
func (c *Cache) Get(model, text string) ([]float32, bool) {
	vec, ok := c.vectors.Get(keyFor(model, text))
	if !ok {
		return nil, false
	}
	return slices.Clone(vec), true
}

func (c *Cache) Put(model, text string, vec []float32) {
	c.vectors.Add(keyFor(model, text), slices.Clone(vec))
}

func (c *Cache) Len() int {
	return c.vectors.Len()
}

func (c *Cache) Purge() {
	c.vectors.Purge()
}

func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest rejects an empty batch and any empty text in it
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

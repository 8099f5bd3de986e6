package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/auden/internal/crawler"
	"github.com/dshills/auden/internal/embedder"
	"github.com/dshills/auden/internal/storage"
	"github.com/dshills/auden/pkg/types"
)

const (
	// DefaultMaxResults caps the number of results a request may ask for
	DefaultMaxResults = 100

	queryCacheSize = 1000
)

var (
	// ErrNotIndexed is returned for a root that has never completed a pass
	ErrNotIndexed = errors.New("directory has not been indexed")
	// ErrInvalidLimit is returned when the result count is out of range
	ErrInvalidLimit = errors.New("invalid result limit")
	// ErrEmptyQuery is returned for a blank query
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Request contains parameters for a search operation
type Request struct {
	Root  string
	Query string
	Limit int
}

// Response contains search results and metadata
type Response struct {
	Root     string
	Results  []types.SearchResult
	Duration time.Duration
	CacheHit bool // query vector came from cache
}

// Searcher answers nearest-neighbour queries scoped to one indexed root
type Searcher struct {
	storage    storage.Storage
	pipeline   *embedder.Pipeline
	maxResults int
	cache      *lru.Cache[[32]byte, []float32]
	logger     *slog.Logger
}

// NewSearcher creates a new Searcher instance. maxResults <= 0 uses
// DefaultMaxResults.
func NewSearcher(store storage.Storage, pipeline *embedder.Pipeline, maxResults int, logger *slog.Logger) *Searcher {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = slog.Default()
	}

	cache, err := lru.New[[32]byte, []float32](queryCacheSize)
	if err != nil {
		// This should never happen with valid size parameter
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		storage:    store,
		pipeline:   pipeline,
		maxResults: maxResults,
		cache:      cache,
		logger:     logger.With("component", "searcher"),
	}
}

// Search embeds the query and returns at most req.Limit chunks of the root,
// most similar first
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	root, err := canonicalRoot(req.Root)
	if err != nil {
		return nil, err
	}

	dir, err := s.storage.GetDirectory(ctx, root)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load directory: %w", err)
	}
	if !dir.HasCompleted() {
		return nil, fmt.Errorf("%w: %s (state %s)", ErrNotIndexed, root, dir.State)
	}

	vector, cacheHit, err := s.queryVector(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	hits, err := s.storage.SimilaritySearch(ctx, dir.ID, s.pipeline.Model(), vector, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	response := &Response{
		Root:     root,
		Results:  buildResults(root, hits),
		CacheHit: cacheHit,
		Duration: time.Since(startTime),
	}

	s.logger.Debug("search completed", "root", root, "limit", req.Limit,
		"results", len(response.Results), "cache_hit", cacheHit, "duration", response.Duration)
	return response, nil
}

func (s *Searcher) validateRequest(req Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	if req.Limit < 1 || req.Limit > s.maxResults {
		return fmt.Errorf("%w: %d (must be between 1 and %d)", ErrInvalidLimit, req.Limit, s.maxResults)
	}
	return nil
}

// queryVector embeds the query in a single call, or serves it from cache
func (s *Searcher) queryVector(ctx context.Context, query string) ([]float32, bool, error) {
	key := sha256.Sum256([]byte(s.pipeline.Model() + "\x00" + query))
	if v, ok := s.cache.Get(key); ok {
		return v, true, nil
	}

	v, err := s.pipeline.EmbedQuery(ctx, query)
	if err != nil {
		return nil, false, err
	}
	s.cache.Add(key, v)
	return v, false, nil
}

func buildResults(root string, hits []storage.ScoredChunk) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(hits))
	for i, hit := range hits {
		results = append(results, types.SearchResult{
			ChunkID:    hit.Chunk.ID,
			Rank:       i + 1,
			Path:       filepath.Join(root, filepath.FromSlash(hit.Chunk.Path)),
			RelPath:    hit.Chunk.Path,
			StartByte:  hit.Chunk.StartByte,
			EndByte:    hit.Chunk.EndByte,
			Similarity: hit.Score,
			Content:    hit.Chunk.Content,
		})
	}
	return results
}

// canonicalRoot resolves the root the same way indexing does. A root that
// no longer exists is looked up by its cleaned absolute path.
func canonicalRoot(root string) (string, error) {
	if canonical, err := crawler.Canonicalize(root); err == nil {
		return canonical, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", root, err)
	}
	return filepath.Clean(abs), nil
}

// ClearCache drops cached query vectors
func (s *Searcher) ClearCache() {
	s.cache.Purge()
}

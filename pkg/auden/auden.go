package auden

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dshills/auden/internal/chunker"
	"github.com/dshills/auden/internal/classifier"
	"github.com/dshills/auden/internal/config"
	"github.com/dshills/auden/internal/crawler"
	"github.com/dshills/auden/internal/embedder"
	"github.com/dshills/auden/internal/indexer"
	"github.com/dshills/auden/internal/parser"
	"github.com/dshills/auden/internal/searcher"
	"github.com/dshills/auden/internal/storage"
	"github.com/dshills/auden/pkg/types"
)

type (
	// Job is a handle to one indexing pass. Wait blocks until it finishes.
	Job = indexer.Job
	// Status is a snapshot of a root's indexing state
	Status = indexer.Status
	// SearchResult is one ranked hit
	SearchResult = types.SearchResult
)

// Errors callers can match with errors.Is
var (
	ErrNotIndexed      = searcher.ErrNotIndexed
	ErrInvalidLimit    = searcher.ErrInvalidLimit
	ErrEmptyQuery      = searcher.ErrEmptyQuery
	ErrRootUnreadable  = indexer.ErrRootUnreadable
	ErrCancelled       = indexer.ErrCancelled
	ErrAllChunksFailed = indexer.ErrAllChunksFailed
	ErrClosed          = indexer.ErrTrackerClosed
)

// Option configures New
type Option func(*options)

type options struct {
	cfg      *config.Config
	embedder embedder.Embedder
	logger   *slog.Logger
}

// WithConfig replaces the configuration loaded from the data directory
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithEmbedder uses emb instead of building a provider from configuration.
// The caller keeps ownership; Close does not close it.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(o *options) { o.embedder = emb }
}

// WithLogger sets the logger; the default is slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Index is a semantic index over any number of directory roots, persisted
// in one data directory
type Index struct {
	cfg      *config.Config
	store    *storage.SQLiteStorage
	emb      embedder.Embedder
	ownsEmb  bool
	tracker  *indexer.Tracker
	searcher *searcher.Searcher
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New opens (or creates) the index stored in dataDir
func New(dataDir string, opts ...Option) (*Index, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	cfg := o.cfg
	if cfg == nil {
		var err error
		cfg, err = config.LoadFromDir(dataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	emb := o.embedder
	ownsEmb := false
	if emb == nil {
		emb, err = embedder.New(embedderConfig(cfg))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		ownsEmb = true
	}

	limiter := embedder.NewRateLimiter(embedder.RateLimitConfig{
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		BurstSize:         cfg.Embedding.Burst,
	})
	pipeline := embedder.NewPipeline(emb, pipelineConfig(cfg), limiter, logger)

	idx := indexer.New(store, pipeline, indexer.Options{
		Classifier: classifier.New(),
		Chunker:    chunker.New(parser.New(), logger),
		Crawler:    crawlerOptions(cfg, logger),
		Logger:     logger,
	})
	tracker := indexer.NewTracker(idx, store, logger)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Pipeline.CallTimeout)
	defer cancel()
	if _, err := tracker.Restore(ctx); err != nil {
		logger.Warn("failed to restore job state", "error", err)
	}

	logger.Info("index opened", "data_dir", cfg.DataDir,
		"provider", emb.Provider(), "model", emb.Model(), "sqlite", storage.BuildMode)

	return &Index{
		cfg:      cfg,
		store:    store,
		emb:      emb,
		ownsEmb:  ownsEmb,
		tracker:  tracker,
		searcher: searcher.NewSearcher(store, pipeline, cfg.Search.MaxResults, logger),
		logger:   logger,
	}, nil
}

// Config returns the effective configuration
func (x *Index) Config() *config.Config {
	return x.cfg
}

// Model returns the embedding model vectors are indexed under
func (x *Index) Model() string {
	return x.emb.Model()
}

// IndexDirectory starts indexing path and returns at once. If path is
// already being indexed the running job is returned.
func (x *Index) IndexDirectory(path string) (*Job, error) {
	job, _, err := x.StartIndexing(path)
	return job, err
}

// StartIndexing is IndexDirectory that also reports whether a new job was
// started
func (x *Index) StartIndexing(path string) (*Job, bool, error) {
	return x.tracker.IndexDirectory(path)
}

// IndexingStatus reports the state and outstanding chunk count of path
func (x *Index) IndexingStatus(ctx context.Context, path string) (Status, error) {
	return x.tracker.Status(ctx, path)
}

// SearchDirectory returns up to n chunks under path most similar to query
func (x *Index) SearchDirectory(ctx context.Context, path string, n int, query string) ([]SearchResult, error) {
	resp, err := x.searcher.Search(ctx, searcher.Request{
		Root:  path,
		Query: query,
		Limit: n,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Stats returns store statistics for an indexed path
func (x *Index) Stats(ctx context.Context, path string) (*storage.DirectoryStatus, error) {
	canonical, err := crawler.Canonicalize(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	dir, err := x.store.GetDirectory(ctx, canonical)
	if err != nil {
		return nil, err
	}
	return x.store.GetStatus(ctx, dir.ID)
}

// Close cancels running jobs, waits for them, and closes the store
func (x *Index) Close() error {
	x.closeOnce.Do(func() {
		x.tracker.Shutdown()
		if x.ownsEmb {
			if err := x.emb.Close(); err != nil {
				x.logger.Warn("failed to close embedder", "error", err)
			}
		}
		x.closeErr = x.store.Close()
	})
	return x.closeErr
}

func embedderConfig(cfg *config.Config) embedder.Config {
	return embedder.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Timeout:   cfg.Embedding.Timeout,
		CacheSize: cfg.Embedding.CacheSize,
		Dimension: cfg.Embedding.Dimension,
	}
}

func pipelineConfig(cfg *config.Config) embedder.PipelineConfig {
	p := cfg.Pipeline
	return embedder.PipelineConfig{
		Workers:   p.Workers,
		QueueSize: p.QueueSize,
		BatchSize: p.BatchSize,
		Retry: embedder.RetryConfig{
			MaxRetries: p.MaxAttempts,
			BaseDelay:  p.BaseDelay,
			MaxDelay:   p.MaxDelay,
			Multiplier: p.Multiplier,
		},
		CallTimeout: p.CallTimeout,
	}
}

func crawlerOptions(cfg *config.Config, logger *slog.Logger) crawler.Options {
	return crawler.Options{
		Excludes:       cfg.Crawler.Excludes,
		IncludeHidden:  cfg.Crawler.IncludeHidden,
		FollowSymlinks: cfg.Crawler.FollowSymlinks,
		MaxFileBytes:   cfg.Crawler.MaxFileBytes,
		Logger:         logger,
	}
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/auden/internal/chunker"
	"github.com/dshills/auden/internal/classifier"
	"github.com/dshills/auden/internal/crawler"
	"github.com/dshills/auden/internal/embedder"
	"github.com/dshills/auden/internal/storage"
	"github.com/dshills/auden/pkg/types"
)

var (
	// ErrCancelled is the failure reason of a cancelled job
	ErrCancelled = errors.New("indexing cancelled")
	// ErrAllChunksFailed is the failure reason when every submitted chunk
	// failed to embed
	ErrAllChunksFailed = errors.New("all chunks failed to embed")
	// ErrRootUnreadable is returned when the root cannot be opened
	ErrRootUnreadable = errors.New("root directory unreadable")
)

// Options configures an Indexer
type Options struct {
	Classifier *classifier.Classifier
	Chunker    *chunker.Chunker
	Crawler    crawler.Options
	Logger     *slog.Logger
}

// Indexer drives one pass: crawl -> classify -> extract -> embed -> store
type Indexer struct {
	store      storage.Storage
	pipeline   *embedder.Pipeline
	classifier *classifier.Classifier
	chunker    *chunker.Chunker
	crawlOpts  crawler.Options
	logger     *slog.Logger
}

// New creates a new Indexer instance
func New(store storage.Storage, pipeline *embedder.Pipeline, opts Options) *Indexer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New()
	}
	if opts.Chunker == nil {
		opts.Chunker = chunker.New(nil, logger)
	}
	if opts.Crawler.Logger == nil {
		opts.Crawler.Logger = logger
	}
	return &Indexer{
		store:      store,
		pipeline:   pipeline,
		classifier: opts.Classifier,
		chunker:    opts.Chunker,
		crawlOpts:  opts.Crawler,
		logger:     logger.With("component", "indexer"),
	}
}

// Model returns the embedding model chunks are indexed under
func (idx *Indexer) Model() string {
	return idx.pipeline.Model()
}

// Run performs a full pass over job.Root, updating the job's counters as it
// goes. It returns nil when the pass finished, even if some chunks failed.
func (idx *Indexer) Run(ctx context.Context, job *Job) error {
	crawl, err := crawler.New(job.Root, idx.crawlOpts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}

	dir, err := idx.store.GetOrCreateDirectory(ctx, crawl.Root())
	if err != nil {
		return fmt.Errorf("failed to get or create directory: %w", err)
	}
	job.setDirectory(dir.ID)

	if err := idx.store.UpdateDirectoryState(ctx, dir.ID, types.StateIndexing, "", nil); err != nil {
		return err
	}

	p := &pass{
		idx:     idx,
		job:     job,
		dirID:   dir.ID,
		model:   idx.pipeline.Model(),
		logger:  idx.logger.With("root", crawl.Root(), "job", job.ID),
		valid:   make(map[string]struct{}),
		seen:    make(map[string]struct{}),
		files:   make(map[string]*storage.File),
		pending: make(map[string]*types.Chunk),
		failed:  make(map[string]struct{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	run := idx.pipeline.Start(gctx)

	g.Go(func() error {
		defer run.Close()
		if err := crawl.Crawl(gctx, p.visitor(gctx, run)); err != nil {
			if gctx.Err() == nil {
				return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
			}
			return err
		}
		return nil
	})
	g.Go(func() error {
		p.consume(ctx, run)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.finalize(ctx)
}

// pass holds the bookkeeping of one Run
type pass struct {
	idx    *Indexer
	job    *Job
	dirID  int64
	model  string
	logger *slog.Logger

	mu      sync.Mutex
	valid   map[string]struct{}      // chunk ids still present
	seen    map[string]struct{}      // indexable files still present
	files   map[string]*storage.File // file records to write once embedded
	pending map[string]*types.Chunk  // submitted chunks by id
	failed  map[string]struct{}      // files with a failed chunk
}

func (p *pass) visitor(ctx context.Context, run *embedder.Run) func(*crawler.File) error {
	return func(f *crawler.File) error {
		p.job.filesSeen.Add(1)

		rule, ok := p.idx.classifier.Classify(f.Path)
		if !ok {
			p.job.filesSkipped.Add(1)
			return nil
		}

		p.mu.Lock()
		p.seen[f.RelPath] = struct{}{}
		p.mu.Unlock()

		if p.unchanged(ctx, f) {
			p.job.filesSkipped.Add(1)
			return nil
		}

		drafts, err := p.idx.chunker.Extract(ctx, f.RelPath, f.Content, rule)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("extraction failed, skipping file", "path", f.RelPath, "error", err)
			p.markFailed(f.RelPath)
			return nil
		}

		p.mu.Lock()
		p.files[f.RelPath] = &storage.File{
			DirectoryID: p.dirID,
			FilePath:    f.RelPath,
			ContentHash: f.Hash,
			ModTime:     f.ModTime,
			SizeBytes:   f.Size,
		}
		p.mu.Unlock()

		for _, draft := range drafts {
			embedText := chunker.EmbedText(f.RelPath, rule.Language, draft.Text)
			chunk := types.NewChunk(f.RelPath, p.model, draft, embedText)
			if err := p.submit(ctx, run, chunk); err != nil {
				return err
			}
		}
		p.logger.Debug("file extracted", "path", f.RelPath, "chunks", len(drafts))
		return nil
	}
}

// unchanged reports whether the file's stored hash matches and its chunks
// exist under the current model, in which case they stay valid. Lookup
// failures count as changed.
func (p *pass) unchanged(ctx context.Context, f *crawler.File) bool {
	existing, err := p.idx.store.GetFile(ctx, p.dirID, f.RelPath)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) && ctx.Err() == nil {
			p.logger.Warn("file lookup failed", "path", f.RelPath, "error", err)
		}
		return false
	}
	if existing.ContentHash != f.Hash {
		return false
	}

	ids, err := p.idx.store.ListChunkIDsByFile(ctx, p.dirID, f.RelPath, p.model)
	if err != nil || len(ids) == 0 {
		return false
	}
	p.mu.Lock()
	for _, id := range ids {
		p.valid[id] = struct{}{}
	}
	p.mu.Unlock()
	return true
}

// submit persists the chunk and queues it for embedding unless a vector for
// it already exists
func (p *pass) submit(ctx context.Context, run *embedder.Run, chunk *types.Chunk) error {
	store := p.idx.store

	p.mu.Lock()
	p.valid[chunk.ID] = struct{}{}
	p.mu.Unlock()

	if stored, err := store.GetChunk(ctx, p.dirID, chunk.ID); err == nil && stored.Embedded() {
		return nil
	}

	if vec, err := store.FindVector(ctx, chunk.ContentHash, p.model); err == nil {
		chunk.Vector = vec
		if err := store.UpsertChunk(ctx, p.dirID, chunk); err != nil {
			return p.storeErr(ctx, chunk, err)
		}
		p.job.chunksReused.Add(1)
		return nil
	}

	if err := store.UpsertChunk(ctx, p.dirID, chunk); err != nil {
		return p.storeErr(ctx, chunk, err)
	}

	p.mu.Lock()
	p.pending[chunk.ID] = chunk
	p.mu.Unlock()
	p.job.outstanding.Add(1)
	p.job.chunksSubmitted.Add(1)

	// A refused submit leaves the row pending, so it stays outstanding
	if err := run.Submit(ctx, embedder.Item{ID: chunk.ID, Text: chunk.EmbedText}); err != nil {
		return err
	}
	return nil
}

// consume stores vectors as they arrive. It drains the run even after
// cancellation so already-embedded chunks are kept.
func (p *pass) consume(ctx context.Context, run *embedder.Run) {
	store := p.idx.store
	writeCtx := context.WithoutCancel(ctx)

	for res := range run.Results() {
		p.mu.Lock()
		chunk := p.pending[res.ID]
		delete(p.pending, res.ID)
		p.mu.Unlock()

		if chunk == nil {
			continue
		}

		switch {
		case errors.Is(res.Err, context.Canceled) || (errors.Is(res.Err, context.DeadlineExceeded) && ctx.Err() != nil):
			// Left pending for the next pass and still counted outstanding,
			// matching the stored pending rows
			continue
		case res.Err == nil:
			chunk.Vector = res.Vector
			if err := store.UpsertChunk(writeCtx, p.dirID, chunk); err != nil {
				p.logger.Warn("failed to store vector", "chunk", chunk.ID, "path", chunk.Path, "error", err)
				p.job.chunksFailed.Add(1)
				p.markFailed(chunk.Path)
			} else {
				p.job.chunksEmbedded.Add(1)
			}
		default:
			p.logger.Warn("chunk failed to embed", "chunk", chunk.ID, "path", chunk.Path,
				"bytes", fmt.Sprintf("%d-%d", chunk.StartByte, chunk.EndByte), "error", res.Err)
			p.job.chunksFailed.Add(1)
			p.markFailed(chunk.Path)
			if err := store.DeleteChunk(writeCtx, p.dirID, chunk.ID); err != nil {
				p.logger.Warn("failed to drop failed chunk", "chunk", chunk.ID, "error", err)
			}
		}
		p.job.outstanding.Add(-1)
	}
}

// finalize records files whose chunks all embedded and prunes what the
// pass did not see
func (p *pass) finalize(ctx context.Context) error {
	store := p.idx.store

	p.mu.Lock()
	defer p.mu.Unlock()

	for path, f := range p.files {
		if _, bad := p.failed[path]; bad {
			continue
		}
		if err := store.UpsertFile(ctx, f); err != nil {
			return fmt.Errorf("failed to record file %s: %w", path, err)
		}
	}

	chunks, err := store.DeleteStale(ctx, p.dirID, p.valid)
	if err != nil {
		return fmt.Errorf("failed to prune stale chunks: %w", err)
	}
	files, err := store.DeleteFilesExcept(ctx, p.dirID, p.seen)
	if err != nil {
		return fmt.Errorf("failed to prune removed files: %w", err)
	}

	p.logger.Debug("pass finalized", "pruned_chunks", chunks, "pruned_files", files)
	return nil
}

func (p *pass) markFailed(path string) {
	p.mu.Lock()
	p.failed[path] = struct{}{}
	p.mu.Unlock()
}

// storeErr stops the pass on cancellation and otherwise drops the chunk,
// counting it as a submitted chunk that failed
func (p *pass) storeErr(ctx context.Context, chunk *types.Chunk, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.logger.Warn("failed to store chunk", "chunk", chunk.ID, "path", chunk.Path, "error", err)
	p.job.chunksSubmitted.Add(1)
	p.job.chunksFailed.Add(1)
	p.markFailed(chunk.Path)
	return nil
}

package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrRunClosed is returned by Submit after Close
var ErrRunClosed = errors.New("embedding run closed")

// PipelineConfig bounds the embedding worker pool
type PipelineConfig struct {
	Workers     int           // concurrent capability callers
	QueueSize   int           // pending items before Submit blocks
	BatchSize   int           // items per capability call
	Retry       RetryConfig   // backoff for transient failures
	CallTimeout time.Duration // per-call bound, separate from the retry budget
}

// DefaultPipelineConfig returns defaults sized to the host
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:     runtime.NumCPU(),
		QueueSize:   256,
		BatchSize:   DefaultBatchSize,
		Retry:       DefaultRetryConfig(),
		CallTimeout: 30 * time.Second,
	}
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	d := DefaultPipelineConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.Retry.MaxRetries <= 0 {
		c.Retry = d.Retry
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

// Item is one text awaiting an embedding. ID is opaque to the pipeline.
type Item struct {
	ID   string
	Text string
}

// Result carries either the vector for an Item or the error that
// permanently failed it
type Result struct {
	ID     string
	Vector []float32
	Model  string
	Err    error
}

// Pipeline turns texts into vectors through a bounded worker pool
type Pipeline struct {
	emb     Embedder
	cfg     PipelineConfig
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewPipeline creates a pipeline over emb. limiter may be nil.
func NewPipeline(emb Embedder, cfg PipelineConfig, limiter *RateLimiter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		emb:     emb,
		cfg:     cfg.withDefaults(),
		limiter: limiter,
		logger:  logger.With("component", "embedder"),
	}
}

// Model returns the embedding model identifier
func (p *Pipeline) Model() string {
	return p.emb.Model()
}

// Config returns the effective configuration
func (p *Pipeline) Config() PipelineConfig {
	return p.cfg
}

// Run is one streaming use of the pipeline. A single producer calls Submit
// then Close; a consumer drains Results until it is closed.
type Run struct {
	p       *Pipeline
	ctx     context.Context
	queue   chan Item
	results chan Result

	mu     sync.RWMutex
	closed bool
}

// Start launches the worker pool. Cancelling ctx stops new capability
// calls; queued items are then reported with the context error.
func (p *Pipeline) Start(ctx context.Context) *Run {
	r := &Run{
		p:       p,
		ctx:     ctx,
		queue:   make(chan Item, p.cfg.QueueSize),
		results: make(chan Result, p.cfg.QueueSize),
	}

	var g errgroup.Group
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			r.work()
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(r.results)
	}()

	return r
}

// Submit enqueues an item, blocking while the queue is full
func (r *Run) Submit(ctx context.Context, item Item) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRunClosed
	}

	select {
	case r.queue <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no more items will be submitted. Safe to call twice.
func (r *Run) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
}

// Results yields one Result per submitted Item, in completion order. It is
// closed once every worker has exited.
func (r *Run) Results() <-chan Result {
	return r.results
}

func (r *Run) work() {
	for item := range r.queue {
		batch := []Item{item}
	fill:
		for len(batch) < r.p.cfg.BatchSize {
			select {
			case next, ok := <-r.queue:
				if !ok {
					break fill
				}
				batch = append(batch, next)
			default:
				break fill
			}
		}
		r.process(batch)
	}
}

func (r *Run) process(batch []Item) {
	if err := r.ctx.Err(); err != nil {
		r.fail(batch, err)
		return
	}

	vectors, err := r.p.embed(r.ctx, texts(batch))
	if err == nil {
		r.emit(batch, vectors)
		return
	}

	// A permanent rejection of a batch is narrowed to the offending items
	if len(batch) > 1 && r.ctx.Err() == nil && !IsTransient(err) && !errors.Is(err, ErrRetriesExhausted) {
		r.p.logger.Debug("batch rejected, retrying items individually", "size", len(batch), "error", err)
		for _, item := range batch {
			if err := r.ctx.Err(); err != nil {
				r.fail([]Item{item}, err)
				continue
			}
			vectors, err := r.p.embed(r.ctx, []string{item.Text})
			if err != nil {
				r.fail([]Item{item}, err)
				continue
			}
			r.emit([]Item{item}, vectors)
		}
		return
	}

	r.fail(batch, err)
}

func (r *Run) emit(batch []Item, vectors [][]float32) {
	model := r.p.emb.Model()
	for i, item := range batch {
		r.results <- Result{ID: item.ID, Vector: vectors[i], Model: model}
	}
}

func (r *Run) fail(batch []Item, err error) {
	if r.ctx.Err() == nil {
		r.p.logger.Warn("embedding failed", "items", len(batch), "error", err)
	}
	for _, item := range batch {
		r.results <- Result{ID: item.ID, Err: err}
	}
}

func texts(batch []Item) []string {
	out := make([]string, len(batch))
	for i, item := range batch {
		out[i] = item.Text
	}
	return out
}

// embed performs one logical capability call with rate limiting, a
// per-attempt timeout and retry of transient failures
func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	return retryWithBackoff(ctx, p.cfg.Retry, func(ctx context.Context) ([][]float32, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()

		resp, err := p.emb.GenerateBatch(callCtx, BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.RateLimited() {
				p.limiter.RecordRateLimitError(apiErr.RetryAfter)
			}
			return nil, err
		}

		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(resp.Embeddings), len(texts))
		}

		dim := p.emb.Dimension()
		vectors := make([][]float32, len(texts))
		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Vector) == 0 {
				return nil, fmt.Errorf("%w: empty embedding at index %d", ErrProviderFailed, i)
			}
			if dim > 0 && len(emb.Vector) != dim {
				return nil, fmt.Errorf("%w: dimension %d, expected %d", ErrProviderFailed, len(emb.Vector), dim)
			}
			vectors[i] = emb.Vector
		}
		return vectors, nil
	})
}

// EmbedBatch embeds items through a private run and returns one Result per
// item in input order. Individual failures do not fail the call.
func (p *Pipeline) EmbedBatch(ctx context.Context, items []Item) []Result {
	if len(items) == 0 {
		return nil
	}

	run := p.Start(ctx)
	go func() {
		defer run.Close()
		for i, item := range items {
			if err := run.Submit(ctx, Item{ID: fmt.Sprint(i), Text: item.Text}); err != nil {
				return
			}
		}
	}()

	byIndex := make(map[string]Result, len(items))
	for res := range run.Results() {
		byIndex[res.ID] = res
	}

	out := make([]Result, len(items))
	for i, item := range items {
		res, ok := byIndex[fmt.Sprint(i)]
		if !ok {
			err := ctx.Err()
			if err == nil {
				err = ErrRunClosed
			}
			res = Result{Err: err}
		}
		res.ID = item.ID
		out[i] = res
	}
	return out
}

// EmbedQuery embeds a single text in one capability call
func (p *Pipeline) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

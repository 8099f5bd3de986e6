package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/auden/internal/crawler"
	"github.com/dshills/auden/internal/storage"
	"github.com/dshills/auden/pkg/types"
)

// ErrTrackerClosed is returned by IndexDirectory after Shutdown
var ErrTrackerClosed = errors.New("tracker shut down")

// Tracker owns the per-root job state machine. At most one job runs per
// root; asking to index a root that is already running returns that job.
type Tracker struct {
	indexer *Indexer
	store   storage.Storage
	logger  *slog.Logger

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	// mu orders admissions (read side) against Shutdown (write side)
	mu     sync.RWMutex
	closed bool

	records sync.Map // canonical root -> *record
}

// record is the tracker's slot for one root. mu makes admission and the
// end of a job atomic with respect to each other.
type record struct {
	mu   sync.Mutex
	lock IndexLock
	job  *Job
}

func (t *Tracker) slot(canonical string) *record {
	v, _ := t.records.LoadOrStore(canonical, &record{})
	return v.(*record)
}

// NewTracker creates a tracker that runs passes with idx
func NewTracker(idx *Indexer, store storage.Storage, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Tracker{
		indexer: idx,
		store:   store,
		logger:  logger.With("component", "tracker"),
		baseCtx: ctx,
		stop:    stop,
	}
}

// IndexDirectory starts a job for root, or returns the running one. The
// bool reports whether a new job was started. It returns immediately.
func (t *Tracker) IndexDirectory(root string) (*Job, bool, error) {
	canonical, err := crawler.Canonicalize(root)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, false, ErrTrackerClosed
	}

	rec := t.slot(canonical)
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.lock.TryAcquire() {
		return rec.job, false, nil
	}

	ctx, cancel := context.WithCancel(t.baseCtx)
	job := newJob(canonical, cancel)
	rec.job = job

	t.wg.Add(1)
	go t.run(ctx, rec, job)

	t.logger.Info("indexing started", "root", canonical, "job", job.ID)
	return job, true, nil
}

func (t *Tracker) run(ctx context.Context, rec *record, job *Job) {
	defer t.wg.Done()
	defer job.cancel()

	err := t.indexer.Run(ctx, job)
	state, reason := outcome(ctx, job, err)

	t.persist(job, state, reason)

	// Release before waking waiters so they may start the next pass, but
	// under rec.mu so no admission sees the lock free while the job still
	// reports indexing
	rec.mu.Lock()
	rec.lock.Release()
	job.finish(state, reason)
	rec.mu.Unlock()

	if state == types.StateFailed {
		t.logger.Error("indexing failed", "root", job.Root, "job", job.ID, "error", reason)
		return
	}
	s := job.Status()
	t.logger.Info("indexing completed", "root", job.Root, "job", job.ID,
		"files", s.FilesSeen, "skipped", s.FilesSkipped, "embedded", s.ChunksEmbedded,
		"reused", s.ChunksReused, "failed", s.ChunksFailed,
		"duration", time.Since(job.StartedAt).Round(time.Millisecond))
}

// outcome maps a finished pass to its terminal state. Partial chunk
// failure still completes; a pass where every submitted chunk failed does
// not.
func outcome(ctx context.Context, job *Job, err error) (types.JobState, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return types.StateFailed, ErrCancelled
	}
	if err != nil {
		return types.StateFailed, err
	}

	failed := job.chunksFailed.Load()
	if failed > 0 && failed >= job.chunksSubmitted.Load() {
		return types.StateFailed, fmt.Errorf("%w: %d chunks", ErrAllChunksFailed, failed)
	}
	return types.StateCompleted, nil
}

func (t *Tracker) persist(job *Job, state types.JobState, reason error) {
	dirID := job.directory()
	if dirID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var completedAt *time.Time
	var lastErr string
	if state == types.StateCompleted {
		now := time.Now()
		completedAt = &now
	}
	if reason != nil {
		lastErr = reason.Error()
	}

	if err := t.store.UpdateDirectoryState(ctx, dirID, state, lastErr, completedAt); err != nil {
		t.logger.Warn("failed to persist job state", "root", job.Root, "error", err)
	}
}

// Get returns the most recent job started for root in this process
func (t *Tracker) Get(root string) (*Job, bool) {
	v, ok := t.records.Load(canonicalOrClean(root))
	if !ok {
		return nil, false
	}
	rec := v.(*record)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.job == nil {
		return nil, false
	}
	return rec.job, true
}

// Status reports the root's state. Roots without a job in this process are
// answered from the store; unknown roots are idle.
func (t *Tracker) Status(ctx context.Context, root string) (Status, error) {
	if job, ok := t.Get(root); ok {
		return job.Status(), nil
	}

	canonical := canonicalOrClean(root)
	dir, err := t.store.GetDirectory(ctx, canonical)
	if errors.Is(err, storage.ErrNotFound) {
		return Status{Root: canonical, State: types.StateIdle}, nil
	}
	if err != nil {
		return Status{}, err
	}

	pending, err := t.store.CountPending(ctx, dir.ID)
	if err != nil {
		return Status{}, err
	}

	s := Status{
		Root:        canonical,
		State:       dir.State,
		Outstanding: int64(pending),
		Error:       dir.LastError,
	}
	if dir.LastCompletedAt != nil {
		s.FinishedAt = *dir.LastCompletedAt
	}
	return s, nil
}

// Restore reconciles persisted state after a restart. Directories left in
// the indexing state by a previous process are marked failed; their pending
// chunks are picked up by the next pass.
func (t *Tracker) Restore(ctx context.Context) (int, error) {
	dirs, err := t.store.ListDirectories(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, dir := range dirs {
		if dir.State != types.StateIndexing {
			continue
		}
		pending, err := t.store.CountPending(ctx, dir.ID)
		if err != nil {
			return restored, err
		}
		reason := fmt.Sprintf("interrupted with %d chunks outstanding", pending)
		if err := t.store.UpdateDirectoryState(ctx, dir.ID, types.StateFailed, reason, nil); err != nil {
			return restored, err
		}
		t.logger.Warn("recovered interrupted job", "root", dir.RootPath, "outstanding", pending)
		restored++
	}
	return restored, nil
}

// Shutdown cancels running jobs and waits for them to finish
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.stop()
	t.wg.Wait()
}

func canonicalOrClean(root string) string {
	if canonical, err := crawler.Canonicalize(root); err == nil {
		return canonical
	}
	if abs, err := filepath.Abs(root); err == nil {
		return filepath.Clean(abs)
	}
	return filepath.Clean(root)
}

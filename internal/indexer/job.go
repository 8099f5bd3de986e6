package indexer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/auden/pkg/types"
)

// Job is one indexing pass over a root. It is shared by every caller that
// asked to index the root while it was running.
type Job struct {
	ID        string
	Root      string
	StartedAt time.Time

	mu          sync.Mutex
	state       types.JobState
	err         error
	finishedAt  time.Time
	directoryID int64

	outstanding     atomic.Int64
	filesSeen       atomic.Int64
	filesSkipped    atomic.Int64
	chunksSubmitted atomic.Int64
	chunksEmbedded  atomic.Int64
	chunksReused    atomic.Int64
	chunksFailed    atomic.Int64

	done   chan struct{}
	cancel context.CancelFunc
}

// Status is a point-in-time snapshot of a job
type Status struct {
	JobID           string         `json:"job_id,omitempty"`
	Root            string         `json:"root"`
	State           types.JobState `json:"state"`
	Outstanding     int64          `json:"outstanding"`
	FilesSeen       int64          `json:"files_seen"`
	FilesSkipped    int64          `json:"files_skipped"`
	ChunksSubmitted int64          `json:"chunks_submitted"`
	ChunksEmbedded  int64          `json:"chunks_embedded"`
	ChunksReused    int64          `json:"chunks_reused"`
	ChunksFailed    int64          `json:"chunks_failed"`
	Error           string         `json:"error,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
}

func newJob(root string, cancel context.CancelFunc) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Root:      root,
		StartedAt: time.Now(),
		state:     types.StateIndexing,
		done:      make(chan struct{}),
		cancel:    cancel,
	}
}

// Done is closed when the job reaches Completed or Failed
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done. It returns the job's
// failure reason, nil for a completed job.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops the job. Chunks already stored are kept; the job ends
// Failed with ErrCancelled.
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// State returns the current state
func (j *Job) State() types.JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Err returns the failure reason once the job has failed
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Outstanding is the number of chunks submitted for embedding that have
// neither been stored nor failed
func (j *Job) Outstanding() int64 {
	return j.outstanding.Load()
}

// Status returns a snapshot of the job
func (j *Job) Status() Status {
	j.mu.Lock()
	s := Status{
		JobID:      j.ID,
		Root:       j.Root,
		State:      j.state,
		StartedAt:  j.StartedAt,
		FinishedAt: j.finishedAt,
	}
	if j.err != nil {
		s.Error = j.err.Error()
	}
	j.mu.Unlock()

	s.Outstanding = j.outstanding.Load()
	s.FilesSeen = j.filesSeen.Load()
	s.FilesSkipped = j.filesSkipped.Load()
	s.ChunksSubmitted = j.chunksSubmitted.Load()
	s.ChunksEmbedded = j.chunksEmbedded.Load()
	s.ChunksReused = j.chunksReused.Load()
	s.ChunksFailed = j.chunksFailed.Load()
	return s
}

func (j *Job) setDirectory(id int64) {
	j.mu.Lock()
	j.directoryID = id
	j.mu.Unlock()
}

func (j *Job) directory() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.directoryID
}

// finish records the terminal state and wakes every waiter. It must be
// called exactly once.
func (j *Job) finish(state types.JobState, err error) {
	j.mu.Lock()
	j.state = state
	j.err = err
	j.finishedAt = time.Now()
	j.mu.Unlock()
	close(j.done)
}

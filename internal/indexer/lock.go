package indexer

import "sync/atomic"

// IndexLock marks a root as having a running job. It never blocks: a
// second admission attempt sees the lock held and joins the existing job.
type IndexLock struct {
	state atomic.Int32 // 0 = idle, 1 = running
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the job that acquired it, once it has finished.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a job currently owns the lock
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}

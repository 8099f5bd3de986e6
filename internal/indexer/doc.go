// Package indexer runs indexing passes and tracks one job per directory.
//
// A pass streams files from the crawler, skips files whose content hash is
// unchanged, extracts chunk drafts, and submits chunks without a stored
// vector to the embedding pipeline. Vectors are written as they arrive.
// When the crawl and the pipeline have drained, files that embedded cleanly
// are recorded and chunks the pass did not see are pruned.
//
// # Job States
//
//	idle -> indexing -> completed
//	             \---> failed
//
// Tracker.IndexDirectory on a root that is already indexing returns the
// running job instead of starting another. Partial chunk failure still
// completes; a pass where every submitted chunk failed, a pass that could
// not read its root, and a cancelled pass end failed.
//
// # Waiting
//
//	job, _, err := tracker.IndexDirectory("/path/to/project")
//	if err != nil {
//	    return err
//	}
//	if err := job.Wait(ctx); err != nil {
//	    // failed or cancelled
//	}
//
// Every caller holding the job is woken when it finishes.
package indexer

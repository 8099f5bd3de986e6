// Package auden is the library surface of the semantic index.
//
//	idx, err := auden.New(dataDir)
//	if err != nil {
//		return err
//	}
//	defer idx.Close()
//
//	job, err := idx.IndexDirectory("/path/to/project")
//	if err != nil {
//		return err
//	}
//	if err := job.Wait(ctx); err != nil {
//		return err
//	}
//
//	results, err := idx.SearchDirectory(ctx, "/path/to/project", 10, "parse config file")
//
// Indexing is incremental: unchanged files and chunks whose content was
// already embedded cost no embedding calls on later passes.
package auden

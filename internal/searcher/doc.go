// Package searcher answers semantic queries against an indexed directory.
//
// A search embeds the query text with the same pipeline used for indexing,
// in one capability call, and ranks the root's stored chunks by cosine
// similarity. Searching a root that has never completed an indexing pass
// fails with ErrNotIndexed, so callers can tell "not indexed" from "no
// matches".
//
//	s := searcher.NewSearcher(store, pipeline, 100, logger)
//	resp, err := s.Search(ctx, searcher.Request{
//	    Root:  "/path/to/project",
//	    Query: "where is the config parsed",
//	    Limit: 10,
//	})
//
// Query vectors are kept in an LRU cache keyed by model and query text.
package searcher

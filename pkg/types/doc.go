// Package types provides the value types shared by the indexing and
// retrieval packages and by library hosts.
//
// A ChunkDraft is what the extractor produces: a byte range and its text.
// NewChunk binds a draft to a file path and an embedding model and derives
// its stable id:
//
//	chunk := types.NewChunk("src/lib.rs", "text-embedding-3-small", draft, embedText)
//	// chunk.ID is a hash of model, path, byte range and content hash
//
// Including the model in the id keeps vectors from different embedding
// models from ever replacing one another.
//
// SearchResult is produced by the query engine and never persisted.
package types

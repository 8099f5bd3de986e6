package types

// SearchResult represents a single ranked hit from a similarity search
type SearchResult struct {
	ChunkID string
	Rank    int // Position in result set (1-based)

	// Path is absolute; RelPath is relative to the searched root
	Path      string
	RelPath   string
	StartByte int
	EndByte   int

	Similarity float64
	Content    string
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == "" {
		return ErrInvalidChunkID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Similarity < -1 || sr.Similarity > 1 {
		return ErrInvalidSimilarity
	}

	if sr.Path == "" {
		return ErrMissingPath
	}

	if sr.StartByte < 0 || sr.EndByte <= sr.StartByte {
		return ErrInvalidRange
	}

	return nil
}

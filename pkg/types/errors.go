package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidChunkID    = errors.New("invalid chunk ID")
	ErrInvalidRange      = errors.New("byte range must satisfy 0 <= start < end")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrMissingPath       = errors.New("file path is required")
	ErrMissingModel      = errors.New("embedding model is required")
	ErrInvalidRank       = errors.New("rank must be >= 1")
	ErrInvalidSimilarity = errors.New("similarity must be between -1 and 1")
)

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Chunk kinds shared by every extraction strategy. Object-level chunks
// carry the syntax node kind of the unit they were cut from.
const (
	KindWholeFile = "file"
)

// ChunkDraft is a byte range of a file selected for embedding. It has no
// identity or vector yet.
type ChunkDraft struct {
	StartByte int
	EndByte   int
	Text      string
	Kind      string
}

// Validate checks the draft's byte range
func (d ChunkDraft) Validate() error {
	if d.StartByte < 0 || d.EndByte <= d.StartByte {
		return ErrInvalidRange
	}
	if d.Text == "" {
		return ErrEmptyContent
	}
	return nil
}

// Chunk is a draft bound to its file, its embedding model, and (once the
// pipeline has run) its vector.
type Chunk struct {
	ID        string
	Path      string // Relative to the indexed root, slash separated
	StartByte int
	EndByte   int
	Kind      string
	Content   string

	// EmbedText is what gets sent to the embedding provider. It is not
	// persisted; ContentHash is computed over it.
	EmbedText   string
	ContentHash [32]byte

	Vector []float32
	Model  string
}

// NewChunk binds a draft to a file path and embedding model
func NewChunk(path, model string, draft ChunkDraft, embedText string) *Chunk {
	c := &Chunk{
		Path:      path,
		StartByte: draft.StartByte,
		EndByte:   draft.EndByte,
		Kind:      draft.Kind,
		Content:   draft.Text,
		EmbedText: embedText,
		Model:     model,
	}
	c.ContentHash = sha256.Sum256([]byte(embedText))
	c.ID = ChunkID(model, path, draft.StartByte, draft.EndByte, c.ContentHash)
	return c
}

// ChunkID derives a stable chunk identifier. Unchanged content at the same
// location under the same model always yields the same id.
func ChunkID(model, path string, start, end int, contentHash [32]byte) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(start))
	binary.LittleEndian.PutUint64(buf[8:], uint64(end))
	h.Write(buf[:])
	h.Write(contentHash[:])

	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Embedded reports whether the chunk has a vector
func (c *Chunk) Embedded() bool {
	return len(c.Vector) > 0
}

// Validate performs structural validation of the chunk
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrInvalidChunkID
	}
	if c.Path == "" {
		return ErrMissingPath
	}
	if c.StartByte < 0 || c.EndByte <= c.StartByte {
		return ErrInvalidRange
	}
	if c.Model == "" {
		return ErrMissingModel
	}
	return nil
}

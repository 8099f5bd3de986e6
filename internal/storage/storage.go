package storage

import (
	"context"
	"time"

	"github.com/dshills/auden/pkg/types"
)

// Storage is the durable store for indexed directories, their files and
// their chunk vectors. It is the single source of truth; job state kept in
// memory elsewhere must be reconstructable from it.
type Storage interface {
	// Directory operations
	GetOrCreateDirectory(ctx context.Context, rootPath string) (*Directory, error)
	GetDirectory(ctx context.Context, rootPath string) (*Directory, error)
	ListDirectories(ctx context.Context) ([]*Directory, error)
	UpdateDirectoryState(ctx context.Context, directoryID int64, state types.JobState, lastError string, completedAt *time.Time) error

	// File operations
	GetFile(ctx context.Context, directoryID int64, filePath string) (*File, error)
	UpsertFile(ctx context.Context, file *File) error
	ListFiles(ctx context.Context, directoryID int64) ([]*File, error)
	DeleteFilesExcept(ctx context.Context, directoryID int64, keep map[string]struct{}) (int, error)

	// Chunk operations
	UpsertChunk(ctx context.Context, directoryID int64, chunk *types.Chunk) error
	GetChunk(ctx context.Context, directoryID int64, chunkID string) (*types.Chunk, error)
	FindVector(ctx context.Context, contentHash [32]byte, model string) ([]float32, error)
	ListChunkIDsByFile(ctx context.Context, directoryID int64, filePath, model string) ([]string, error)
	DeleteChunk(ctx context.Context, directoryID int64, chunkID string) error
	DeleteStale(ctx context.Context, directoryID int64, valid map[string]struct{}) (int, error)
	CountPending(ctx context.Context, directoryID int64) (int, error)

	// Search operations
	SimilaritySearch(ctx context.Context, directoryID int64, model string, vector []float32, limit int) ([]ScoredChunk, error)

	// Status operations
	GetStatus(ctx context.Context, directoryID int64) (*DirectoryStatus, error)

	// Database operations
	Close() error
}

// Directory is an indexed root
type Directory struct {
	ID              int64
	RootPath        string // Canonical absolute path
	State           types.JobState
	LastError       string
	LastCompletedAt *time.Time // Nil until a pass has completed
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasCompleted reports whether any indexing pass over the root completed
func (d *Directory) HasCompleted() bool {
	return d.LastCompletedAt != nil
}

// File is a tracked file under a directory
type File struct {
	ID            int64
	DirectoryID   int64
	FilePath      string // Relative to the directory root, slash separated
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ScoredChunk is a similarity search hit
type ScoredChunk struct {
	Chunk *types.Chunk
	Score float64
}

// DirectoryStatus contains statistics about an indexed directory
type DirectoryStatus struct {
	Directory     *Directory
	FilesCount    int
	ChunksCount   int
	EmbeddedCount int
	PendingCount  int
	IndexSizeMB   float64
}

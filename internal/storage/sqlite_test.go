package storage

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/auden/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func testChunk(path string, start, end int, text, model string, vector []float32) *types.Chunk {
	c := types.NewChunk(path, model, types.ChunkDraft{StartByte: start, EndByte: end, Text: text, Kind: "function_item"}, "embed:"+text)
	c.Vector = vector
	return c
}

func TestDirectoryLifecycle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, err := s.GetDirectory(ctx, "/proj")
	assert.ErrorIs(t, err, ErrNotFound)

	dir, err := s.GetOrCreateDirectory(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, types.StateIdle, dir.State)
	assert.False(t, dir.HasCompleted())

	again, err := s.GetOrCreateDirectory(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, dir.ID, again.ID)

	now := time.Now()
	require.NoError(t, s.UpdateDirectoryState(ctx, dir.ID, types.StateCompleted, "", &now))
	require.NoError(t, s.UpdateDirectoryState(ctx, dir.ID, types.StateFailed, "boom", nil))

	got, err := s.GetDirectory(ctx, "/proj")
	require.NoError(t, err)
	assert.Equal(t, types.StateFailed, got.State)
	assert.Equal(t, "boom", got.LastError)
	assert.True(t, got.HasCompleted(), "completion time survives a later failure")

	assert.ErrorIs(t, s.UpdateDirectoryState(ctx, 999, types.StateIdle, "", nil), ErrNotFound)

	_, err = s.GetOrCreateDirectory(ctx, "/other")
	require.NoError(t, err)
	dirs, err := s.ListDirectories(ctx)
	require.NoError(t, err)
	require.Len(t, dirs, 2)
	assert.Equal(t, "/other", dirs[0].RootPath)
}

func TestFileOperations(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	dir, err := s.GetOrCreateDirectory(ctx, "/proj")
	require.NoError(t, err)

	f := &File{DirectoryID: dir.ID, FilePath: "a.rs", ContentHash: [32]byte{1}, SizeBytes: 10, ModTime: time.Now()}
	require.NoError(t, s.UpsertFile(ctx, f))
	assert.Greater(t, f.ID, int64(0))

	f.ContentHash = [32]byte{2}
	require.NoError(t, s.UpsertFile(ctx, f))

	got, err := s.GetFile(ctx, dir.ID, "a.rs")
	require.NoError(t, err)
	assert.Equal(t, [32]byte{2}, got.ContentHash)
	assert.Equal(t, f.ID, got.ID)

	require.NoError(t, s.UpsertFile(ctx, &File{DirectoryID: dir.ID, FilePath: "b.md"}))
	deleted, err := s.DeleteFilesExcept(ctx, dir.ID, map[string]struct{}{"b.md": {}})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	files, err := s.ListFiles(ctx, dir.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "b.md", files[0].FilePath)

	_, err = s.GetFile(ctx, dir.ID, "a.rs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertChunk(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	dir, err := s.GetOrCreateDirectory(ctx, "/proj")
	require.NoError(t, err)

	pending := testChunk("a.rs", 0, 11, "fn foo() {}", "m", nil)
	require.NoError(t, s.UpsertChunk(ctx, dir.ID, pending))

	n, err := s.CountPending(ctx, dir.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	embedded := *pending
	embedded.Vector = []float32{1, 0, 0}
	require.NoError(t, s.UpsertChunk(ctx, dir.ID, &embedded))

	// a later pending write must not clear the vector
	require.NoError(t, s.UpsertChunk(ctx, dir.ID, pending))

	got, err := s.GetChunk(ctx, dir.ID, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got.Vector)
	assert.Equal(t, pending.ContentHash, got.ContentHash)
	assert.Equal(t, "fn foo() {}", got.Content)

	n, err = s.CountPending(ctx, dir.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	vec, err := s.FindVector(ctx, pending.ContentHash, "m")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)

	_, err = s.FindVector(ctx, pending.ContentHash, "other-model")
	assert.ErrorIs(t, err, ErrNotFound)

	bad := &types.Chunk{ID: "x", Path: "a.rs", StartByte: 5, EndByte: 5, Model: "m"}
	assert.ErrorIs(t, s.UpsertChunk(ctx, dir.ID, bad), types.ErrInvalidRange)
}

func TestDeleteStale(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	dir, err := s.GetOrCreateDirectory(ctx, "/proj")
	require.NoError(t, err)
	other, err := s.GetOrCreateDirectory(ctx, "/other")
	require.NoError(t, err)

	keep := testChunk("a.rs", 0, 3, "abc", "m", []float32{1})
	drop := testChunk("c.toml", 0, 3, "xyz", "m", []float32{1})
	require.NoError(t, s.UpsertChunk(ctx, dir.ID, keep))
	require.NoError(t, s.UpsertChunk(ctx, dir.ID, drop))
	require.NoError(t, s.UpsertChunk(ctx, other.ID, drop))

	deleted, err := s.DeleteStale(ctx, dir.ID, map[string]struct{}{keep.ID: {}})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = s.GetChunk(ctx, dir.ID, drop.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetChunk(ctx, other.ID, drop.ID)
	assert.NoError(t, err, "other directories are untouched")

	ids, err := s.ListChunkIDsByFile(ctx, dir.ID, "a.rs", keep.Model)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, ids)

	ids, err = s.ListChunkIDsByFile(ctx, dir.ID, "a.rs", "other-model")
	require.NoError(t, err)
	assert.Empty(t, ids, "chunks are listed per model")

	require.NoError(t, s.DeleteChunk(ctx, dir.ID, keep.ID))
	_, err = s.GetChunk(ctx, dir.ID, keep.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSimilaritySearch(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	dir, err := s.GetOrCreateDirectory(ctx, "/proj")
	require.NoError(t, err)
	other, err := s.GetOrCreateDirectory(ctx, "/other")
	require.NoError(t, err)

	exact := testChunk("a.rs", 0, 5, "exact", "m", []float32{1, 0, 0})
	near := testChunk("a.rs", 5, 9, "near", "m", []float32{0.9, 0.1, 0})
	twinA := testChunk("b.rs", 0, 4, "twin", "m", []float32{0, 1, 0})
	twinB := testChunk("c.rs", 0, 4, "twin", "m", []float32{0, 1, 0})
	foreignModel := testChunk("d.rs", 0, 4, "fore", "other-model", []float32{1, 0, 0})
	wrongDim := testChunk("e.rs", 0, 4, "dims", "m", []float32{1, 0})
	pending := testChunk("f.rs", 0, 4, "pend", "m", nil)
	elsewhere := testChunk("a.rs", 0, 5, "exact", "m", []float32{1, 0, 0})

	for _, c := range []*types.Chunk{exact, near, twinA, twinB, foreignModel, wrongDim, pending} {
		require.NoError(t, s.UpsertChunk(ctx, dir.ID, c))
	}
	require.NoError(t, s.UpsertChunk(ctx, other.ID, elsewhere))

	t.Run("ranked by similarity", func(t *testing.T) {
		results, err := s.SimilaritySearch(ctx, dir.ID, "m", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, results, 4)

		assert.Equal(t, exact.ID, results[0].Chunk.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-6)
		assert.Equal(t, near.ID, results[1].Chunk.ID)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("ties broken by chunk id", func(t *testing.T) {
		results, err := s.SimilaritySearch(ctx, dir.ID, "m", []float32{0, 1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		first, second := twinA.ID, twinB.ID
		if second < first {
			first, second = second, first
		}
		assert.Equal(t, first, results[0].Chunk.ID)
		assert.Equal(t, second, results[1].Chunk.ID)
	})

	t.Run("limit bounds results", func(t *testing.T) {
		results, err := s.SimilaritySearch(ctx, dir.ID, "m", []float32{1, 0, 0}, 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)

		results, err = s.SimilaritySearch(ctx, dir.ID, "m", []float32{1, 0, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("scoped to directory and model", func(t *testing.T) {
		results, err := s.SimilaritySearch(ctx, other.ID, "m", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, elsewhere.ID, results[0].Chunk.ID)

		results, err = s.SimilaritySearch(ctx, dir.ID, "other-model", []float32{1, 0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, foreignModel.ID, results[0].Chunk.ID)
	})
}

func TestGetStatus(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	dir, err := s.GetOrCreateDirectory(ctx, "/proj")
	require.NoError(t, err)

	require.NoError(t, s.UpsertFile(ctx, &File{DirectoryID: dir.ID, FilePath: "a.rs"}))
	require.NoError(t, s.UpsertChunk(ctx, dir.ID, testChunk("a.rs", 0, 3, "abc", "m", []float32{1})))
	require.NoError(t, s.UpsertChunk(ctx, dir.ID, testChunk("a.rs", 3, 6, "def", "m", nil)))

	status, err := s.GetStatus(ctx, dir.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesCount)
	assert.Equal(t, 2, status.ChunksCount)
	assert.Equal(t, 1, status.EmbeddedCount)
	assert.Equal(t, 1, status.PendingCount)
	assert.Equal(t, "/proj", status.Directory.RootPath)

	_, err = s.GetStatus(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/auden/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// A single connection serializes every write, including concurrent
	// upserts of the same chunk id
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// withTx runs fn inside a transaction. fn must use only the querier it is
// given; the pool has a single connection.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Directory operations

const directoryColumns = `id, root_path, state, last_error, last_completed_at, created_at, updated_at`

func scanDirectory(row interface{ Scan(...interface{}) error }) (*Directory, error) {
	var d Directory
	var state string
	var lastError sql.NullString
	var completed sql.NullTime
	if err := row.Scan(&d.ID, &d.RootPath, &state, &lastError, &completed, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.State = types.JobState(state)
	d.LastError = lastError.String
	if completed.Valid {
		t := completed.Time
		d.LastCompletedAt = &t
	}
	return &d, nil
}

// GetOrCreateDirectory returns the directory for rootPath, creating it in
// the idle state on first use
func (s *SQLiteStorage) GetOrCreateDirectory(ctx context.Context, rootPath string) (*Directory, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO directories (root_path, state, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(root_path) DO NOTHING
	`, rootPath, string(types.StateIdle), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return s.GetDirectory(ctx, rootPath)
}

func (s *SQLiteStorage) GetDirectory(ctx context.Context, rootPath string) (*Directory, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+directoryColumns+" FROM directories WHERE root_path = ?", rootPath)
	d, err := scanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get directory: %w", err)
	}
	return d, nil
}

func (s *SQLiteStorage) ListDirectories(ctx context.Context) ([]*Directory, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+directoryColumns+" FROM directories ORDER BY root_path")
	if err != nil {
		return nil, fmt.Errorf("failed to list directories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dirs []*Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// UpdateDirectoryState persists a job transition. A nil completedAt keeps
// the previous completion time.
func (s *SQLiteStorage) UpdateDirectoryState(ctx context.Context, directoryID int64, state types.JobState, lastError string, completedAt *time.Time) error {
	var completed sql.NullTime
	if completedAt != nil {
		completed = sql.NullTime{Time: *completedAt, Valid: true}
	}
	var errText sql.NullString
	if lastError != "" {
		errText = sql.NullString{String: lastError, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE directories
		SET state = ?, last_error = ?, last_completed_at = COALESCE(?, last_completed_at), updated_at = ?
		WHERE id = ?
	`, string(state), errText, completed, time.Now(), directoryID)
	if err != nil {
		return fmt.Errorf("failed to update directory state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// File operations

const fileColumns = `id, directory_id, file_path, content_hash, mod_time, size_bytes, last_indexed_at, created_at, updated_at`

func scanFile(row interface{ Scan(...interface{}) error }) (*File, error) {
	var f File
	var hash []byte
	var modTime, indexedAt sql.NullTime
	var size sql.NullInt64
	if err := row.Scan(&f.ID, &f.DirectoryID, &f.FilePath, &hash, &modTime, &size, &indexedAt, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	copy(f.ContentHash[:], hash)
	f.ModTime = modTime.Time
	f.SizeBytes = size.Int64
	f.LastIndexedAt = indexedAt.Time
	return &f, nil
}

func (s *SQLiteStorage) GetFile(ctx context.Context, directoryID int64, filePath string) (*File, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE directory_id = ? AND file_path = ?", directoryID, filePath)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return f, nil
}

// UpsertFile records the file's current hash, keyed by directory and path
func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	now := time.Now()
	query := `
		INSERT INTO files (directory_id, file_path, content_hash, mod_time, size_bytes, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(directory_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		file.DirectoryID, file.FilePath, file.ContentHash[:], file.ModTime, file.SizeBytes, now, now, now,
	).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, directoryID int64) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE directory_id = ? ORDER BY file_path", directoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFilesExcept removes file records whose path is not in keep
func (s *SQLiteStorage) DeleteFilesExcept(ctx context.Context, directoryID int64, keep map[string]struct{}) (int, error) {
	deleted := 0
	err := s.withTx(ctx, func(q querier) error {
		paths, err := selectStrings(ctx, q, "SELECT file_path FROM files WHERE directory_id = ?", directoryID)
		if err != nil {
			return err
		}
		for _, p := range paths {
			if _, ok := keep[p]; ok {
				continue
			}
			if _, err := q.ExecContext(ctx, "DELETE FROM files WHERE directory_id = ? AND file_path = ?", directoryID, p); err != nil {
				return fmt.Errorf("failed to delete file %s: %w", p, err)
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// Chunk operations

// UpsertChunk writes a chunk. Writing a chunk without a vector never clears
// one already stored under the same id.
func (s *SQLiteStorage) UpsertChunk(ctx context.Context, directoryID int64, chunk *types.Chunk) error {
	return upsertChunkWithQuerier(ctx, s.db, directoryID, chunk)
}

func upsertChunkWithQuerier(ctx context.Context, q querier, directoryID int64, chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}

	var vector interface{}
	if chunk.Embedded() {
		vector = serializeVector(chunk.Vector)
	}

	now := time.Now()
	query := `
		INSERT INTO chunks (directory_id, id, file_path, start_byte, end_byte, kind, content,
			content_hash, model, vector, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(directory_id, id) DO UPDATE SET
			vector = COALESCE(excluded.vector, chunks.vector),
			dimension = CASE WHEN excluded.vector IS NULL THEN chunks.dimension ELSE excluded.dimension END,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		directoryID, chunk.ID, chunk.Path, chunk.StartByte, chunk.EndByte, chunk.Kind, chunk.Content,
		chunk.ContentHash[:], chunk.Model, vector, len(chunk.Vector), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}
	return nil
}

const chunkColumns = `id, file_path, start_byte, end_byte, kind, content, content_hash, model, vector`

func scanChunk(row interface{ Scan(...interface{}) error }) (*types.Chunk, error) {
	var c types.Chunk
	var hash, vector []byte
	if err := row.Scan(&c.ID, &c.Path, &c.StartByte, &c.EndByte, &c.Kind, &c.Content, &hash, &c.Model, &vector); err != nil {
		return nil, err
	}
	copy(c.ContentHash[:], hash)
	if len(vector) > 0 {
		c.Vector = deserializeVector(vector)
	}
	return &c, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, directoryID int64, chunkID string) (*types.Chunk, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE directory_id = ? AND id = ?", directoryID, chunkID)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk: %w", err)
	}
	return c, nil
}

// FindVector returns a stored vector for identical embed text under the
// same model, from any directory
func (s *SQLiteStorage) FindVector(ctx context.Context, contentHash [32]byte, model string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT vector FROM chunks
		WHERE content_hash = ? AND model = ? AND vector IS NOT NULL
		LIMIT 1
	`, contentHash[:], model).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vector: %w", err)
	}
	return deserializeVector(blob), nil
}

// ListChunkIDsByFile returns the ids of the file's chunks stored under model
func (s *SQLiteStorage) ListChunkIDsByFile(ctx context.Context, directoryID int64, filePath, model string) ([]string, error) {
	return selectStrings(ctx, s.db,
		"SELECT id FROM chunks WHERE directory_id = ? AND file_path = ? AND model = ? ORDER BY start_byte",
		directoryID, filePath, model)
}

func (s *SQLiteStorage) DeleteChunk(ctx context.Context, directoryID int64, chunkID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE directory_id = ? AND id = ?", directoryID, chunkID)
	if err != nil {
		return fmt.Errorf("failed to delete chunk: %w", err)
	}
	return nil
}

// DeleteStale prunes every chunk of the directory whose id is not in valid
func (s *SQLiteStorage) DeleteStale(ctx context.Context, directoryID int64, valid map[string]struct{}) (int, error) {
	deleted := 0
	err := s.withTx(ctx, func(q querier) error {
		ids, err := selectStrings(ctx, q, "SELECT id FROM chunks WHERE directory_id = ?", directoryID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, ok := valid[id]; ok {
				continue
			}
			if _, err := q.ExecContext(ctx, "DELETE FROM chunks WHERE directory_id = ? AND id = ?", directoryID, id); err != nil {
				return fmt.Errorf("failed to delete stale chunk: %w", err)
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountPending counts chunks persisted without a vector
func (s *SQLiteStorage) CountPending(ctx context.Context, directoryID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE directory_id = ? AND vector IS NULL", directoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending chunks: %w", err)
	}
	return n, nil
}

// SimilaritySearch ranks the directory's chunks by cosine similarity to
// vector. Only chunks embedded with model and of matching dimension are
// compared. Ties are broken by chunk id.
func (s *SQLiteStorage) SimilaritySearch(ctx context.Context, directoryID int64, model string, vector []float32, limit int) ([]ScoredChunk, error) {
	if limit <= 0 || len(vector) == 0 {
		return []ScoredChunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vector FROM chunks
		WHERE directory_id = ? AND model = ? AND vector IS NOT NULL AND dimension = ?
	`, directoryID, model, len(vector))
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}

	candidates, err := computeSimilarityScores(rows, vector)
	_ = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to score chunks: %w", err)
	}

	sortCandidates(candidates)
	top := topCandidates(candidates, limit)

	results := make([]ScoredChunk, 0, len(top))
	for _, cand := range top {
		chunk, err := s.GetChunk(ctx, directoryID, cand.chunkID)
		if errors.Is(err, ErrNotFound) {
			continue // pruned between scoring and fetch
		}
		if err != nil {
			return nil, err
		}
		results = append(results, ScoredChunk{Chunk: chunk, Score: cand.score})
	}
	return results, nil
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context, directoryID int64) (*DirectoryStatus, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+directoryColumns+" FROM directories WHERE id = ?", directoryID)
	dir, err := scanDirectory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get directory: %w", err)
	}

	status := &DirectoryStatus{Directory: dir}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE directory_id = ?", directoryID).Scan(&status.FilesCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(vector) FROM chunks WHERE directory_id = ?
	`, directoryID).Scan(&status.ChunksCount, &status.EmbeddedCount)
	if err != nil {
		return nil, err
	}
	status.PendingCount = status.ChunksCount - status.EmbeddedCount

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return status, nil
}

func selectStrings(ctx context.Context, q querier, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

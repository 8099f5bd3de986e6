// Package storage persists indexed directories, file hashes and chunk
// vectors in SQLite.
//
// # Database Schema
//
// Tables:
//   - directories: indexed roots with their last job state and completion time
//   - files: relative paths and SHA-256 hashes, used to skip unchanged files
//   - chunks: byte ranges, content hash, model id and vector per chunk
//
// A chunk row with a NULL vector is awaiting embedding. Counting those rows
// reconstructs a job's outstanding work after a restart.
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(filepath.Join(dataDir, "index.db"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	dir, _ := db.GetOrCreateDirectory(ctx, "/home/me/project")
//	_ = db.UpsertChunk(ctx, dir.ID, chunk)
//	hits, _ := db.SimilaritySearch(ctx, dir.ID, model, queryVector, 10)
//
// # Similarity Search
//
// Cosine similarity is computed in Go over every embedded chunk of the
// directory that shares the query's model and dimension. Results are
// ordered by score, then by chunk id, and never exceed the limit.
//
// # Migrations
//
// Schema versions are semver strings recorded in schema_version.
// ApplyMigrations runs every newer migration in order; RollbackMigration
// undoes the latest one.
package storage

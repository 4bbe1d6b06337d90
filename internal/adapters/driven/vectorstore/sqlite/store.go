// Package sqlite provides an embedded VectorStore over a local SQLite
// database. Vectors are stored as little-endian float32 BLOBs and
// searched with exact cosine similarity, which keeps small and medium
// documents dependency-free at query time.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
	name        TEXT PRIMARY KEY,
	vector_size INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS points (
	collection     TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
	document_id    TEXT NOT NULL,
	chunk_index    INTEGER NOT NULL,
	document_title TEXT NOT NULL,
	text           TEXT NOT NULL,
	embedding      BLOB NOT NULL,
	PRIMARY KEY (collection, document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_points_collection ON points(collection);
`

// Store is a file-backed vector store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path. If path is empty,
// defaults to ~/.config/longdoc/vectors.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "longdoc", "vectors.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// EnsureCollection registers the collection when missing and reports
// whether it did. An existing collection with a different vector size is
// a configuration error.
func (s *Store) EnsureCollection(ctx context.Context, name string, vectorSize int) (bool, error) {
	if vectorSize <= 0 {
		return false, domain.ConfigErrorf("sqlite: invalid vector size %d", vectorSize)
	}

	var existing int
	err := s.db.QueryRowContext(ctx,
		"SELECT vector_size FROM collections WHERE name = ?", name).Scan(&existing)
	switch {
	case err == nil:
		if existing != vectorSize {
			return false, fmt.Errorf("sqlite: collection %s has vector size %d, want %d: %w",
				name, existing, vectorSize, domain.ErrCollectionMismatch)
		}
		return false, nil
	case errors.Is(err, sql.ErrNoRows):
		// fall through to create
	default:
		return false, fmt.Errorf("sqlite: query collection: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO collections (name, vector_size, created_at) VALUES (?, ?, ?)",
		name, vectorSize, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("sqlite: create collection: %w", err)
	}
	return true, nil
}

// Populated reports whether the collection holds at least one point.
func (s *Store) Populated(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM points WHERE collection = ?", name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqlite: count points: %w", err)
	}
	return count > 0, nil
}

// Owner returns the document ID of the stored points, or "" when the
// collection holds none.
func (s *Store) Owner(ctx context.Context, name string) (string, error) {
	var docID string
	err := s.db.QueryRowContext(ctx,
		"SELECT document_id FROM points WHERE collection = ? LIMIT 1", name).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: query owner: %w", err)
	}
	return docID, nil
}

// Upsert writes records in one transaction. The primary key is
// (collection, document, chunk index), so re-indexing a document
// replaces its points instead of duplicating them.
func (s *Store) Upsert(ctx context.Context, name string, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	size, err := s.vectorSize(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO points
		(collection, document_id, chunk_index, document_title, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) != size {
			return domain.ConfigErrorf("sqlite: vector for chunk %d has %d dimensions, collection %s expects %d",
				r.Metadata.ChunkIndex, len(r.Vector), name, size)
		}
		_, err := stmt.ExecContext(ctx,
			name, r.Metadata.DocumentID, r.Metadata.ChunkIndex,
			r.Metadata.DocumentTitle, r.Metadata.Text, encodeVector(r.Vector))
		if err != nil {
			return fmt.Errorf("sqlite: insert chunk %d: %w", r.Metadata.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit upsert: %w", err)
	}
	return nil
}

// Search scans the collection and ranks by exact cosine similarity:
// descending score, ties by ascending chunk index.
func (s *Store) Search(
	ctx context.Context, name string, vector []float32, limit int, filter *driven.SearchFilter,
) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	query := "SELECT document_id, chunk_index, document_title, text, embedding FROM points WHERE collection = ?"
	args := []any{name}
	if filter != nil && filter.DocumentID != "" {
		query += " AND document_id = ?"
		args = append(args, filter.DocumentID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search query: %w", err)
	}
	defer rows.Close()

	var hits []domain.ScoredChunk
	for rows.Next() {
		var meta domain.DocumentMetadata
		var blob []byte
		if err := rows.Scan(&meta.DocumentID, &meta.ChunkIndex, &meta.DocumentTitle, &meta.Text, &blob); err != nil {
			return nil, fmt.Errorf("sqlite: scan point: %w", err)
		}
		stored, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.ScoredChunk{
			Metadata: meta,
			Score:    cosineSimilarity(vector, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Metadata.ChunkIndex < hits[j].Metadata.ChunkIndex
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats returns point count and configured vector size.
func (s *Store) Stats(ctx context.Context, name string) (driven.CollectionStats, error) {
	size, err := s.vectorSize(ctx, name)
	if err != nil {
		return driven.CollectionStats{}, err
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM points WHERE collection = ?", name).Scan(&count)
	if err != nil {
		return driven.CollectionStats{}, fmt.Errorf("sqlite: count points: %w", err)
	}

	return driven.CollectionStats{Count: count, Dimension: size}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// vectorSize looks up the registered size for a collection.
func (s *Store) vectorSize(ctx context.Context, name string) (int, error) {
	var size int
	err := s.db.QueryRowContext(ctx,
		"SELECT vector_size FROM collections WHERE name = ?", name).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("sqlite: collection %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: query collection: %w", err)
	}
	return size, nil
}

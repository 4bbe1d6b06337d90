package driven

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// VectorStore manages per-document vector collections.
// Implementations include Qdrant over REST and an embedded SQLite store.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	// Returns created=false when a collection with the same vector size
	// already exists; stored vectors are left untouched. An existing
	// collection with a different vector size is a configuration error.
	EnsureCollection(ctx context.Context, name string, vectorSize int) (created bool, err error)

	// Populated reports whether the collection already holds vectors.
	// The coordinator uses this to skip re-embedding on reruns.
	Populated(ctx context.Context, name string) (bool, error)

	// Owner returns the document ID the collection's vectors belong to,
	// or "" when the collection is empty or missing. Collections hold
	// one document, so any stored point carries the answer. The
	// coordinator compares this against the current document before
	// reusing a populated collection.
	Owner(ctx context.Context, name string) (string, error)

	// Upsert writes one logical batch of records. There are no silent
	// partial writes: the batch either lands or the call errors.
	Upsert(ctx context.Context, name string, records []domain.EmbeddingRecord) error

	// Search returns the nearest neighbours to the query vector, ordered
	// by descending score with ties broken by ascending chunk index.
	// A nil filter matches everything.
	Search(ctx context.Context, name string, vector []float32, limit int, filter *SearchFilter) ([]domain.ScoredChunk, error)

	// HealthCheck verifies the store is reachable. Side-effect free.
	HealthCheck(ctx context.Context) error

	// Stats returns collection diagnostics. Side-effect free.
	Stats(ctx context.Context, name string) (CollectionStats, error)

	// Close releases resources.
	Close() error
}

// SearchFilter restricts search results by payload fields.
type SearchFilter struct {
	// DocumentID, when non-empty, limits hits to one document.
	DocumentID string
}

// CollectionStats describes a collection.
type CollectionStats struct {
	// Count is the number of stored vectors.
	Count int

	// Dimension is the configured vector size.
	Dimension int
}

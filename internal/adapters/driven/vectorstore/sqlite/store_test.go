package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(docID string, index int, vec []float32) domain.EmbeddingRecord {
	return domain.EmbeddingRecord{
		Vector: vec,
		Metadata: domain.DocumentMetadata{
			DocumentID:    docID,
			DocumentTitle: "Guide",
			ChunkIndex:    index,
			Text:          fmt.Sprintf("chunk %d of %s", index, docID),
		},
	}
}

func TestEnsureCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = store.EnsureCollection(ctx, "docs", 8)
	assert.ErrorIs(t, err, domain.ErrCollectionMismatch)
	assert.True(t, domain.IsConfiguration(err))
}

func TestUpsertAndSearchRanksByCosine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, "docs", []domain.EmbeddingRecord{
		record("doc-1", 0, []float32{0, 1, 0, 0}),
		record("doc-1", 1, []float32{1, 0, 0, 0}),
		record("doc-1", 2, []float32{0.9, 0.1, 0, 0}),
	}))

	populated, err := store.Populated(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, populated)

	hits, err := store.Search(ctx, "docs", []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Metadata.ChunkIndex, "exact match first")
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, 2, hits[1].Metadata.ChunkIndex)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner, err := store.Owner(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, owner, "missing collection has no owner")

	_, err = store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)

	owner, err = store.Owner(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, owner, "empty collection has no owner")

	require.NoError(t, store.Upsert(ctx, "docs", []domain.EmbeddingRecord{
		record("doc-1", 0, []float32{1, 0, 0, 0}),
	}))

	owner, err = store.Owner(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", owner)
}

func TestSearchTieBreaksByChunkIndex(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)

	same := []float32{0.5, 0.5, 0, 0}
	require.NoError(t, store.Upsert(ctx, "docs", []domain.EmbeddingRecord{
		record("doc-1", 9, same),
		record("doc-1", 3, same),
		record("doc-1", 6, same),
	}))

	hits, err := store.Search(ctx, "docs", []float32{1, 1, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 3, hits[0].Metadata.ChunkIndex)
	assert.Equal(t, 6, hits[1].Metadata.ChunkIndex)
	assert.Equal(t, 9, hits[2].Metadata.ChunkIndex)
}

func TestSearchFilterByDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, "docs", []domain.EmbeddingRecord{
		record("doc-1", 0, []float32{1, 0, 0, 0}),
		record("doc-2", 0, []float32{1, 0, 0, 0}),
	}))

	hits, err := store.Search(ctx, "docs", []float32{1, 0, 0, 0}, 10, &driven.SearchFilter{DocumentID: "doc-2"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-2", hits[0].Metadata.DocumentID)
}

func TestUpsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)

	records := []domain.EmbeddingRecord{
		record("doc-1", 0, []float32{1, 0, 0, 0}),
		record("doc-1", 1, []float32{0, 1, 0, 0}),
	}
	require.NoError(t, store.Upsert(ctx, "docs", records))
	require.NoError(t, store.Upsert(ctx, "docs", records))

	stats, err := store.Stats(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count, "replace, not duplicate")
	assert.Equal(t, 4, stats.Dimension)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)

	err = store.Upsert(ctx, "docs", []domain.EmbeddingRecord{
		record("doc-1", 0, []float32{1, 0}),
	})
	assert.True(t, domain.IsConfiguration(err), "dimension mismatch is fatal: %v", err)
}

func TestUpsertMissingCollection(t *testing.T) {
	store := newTestStore(t)

	err := store.Upsert(context.Background(), "nope", []domain.EmbeddingRecord{
		record("doc-1", 0, []float32{1}),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatsMissingCollection(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Stats(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)
	_, err = store.EnsureCollection(ctx, "docs", 4)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(ctx, "docs", []domain.EmbeddingRecord{
		record("doc-1", 0, []float32{1, 0, 0, 0}),
	}))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	populated, err := reopened.Populated(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, populated)

	hits, err := reopened.Search(ctx, "docs", []float32{1, 0, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk 0 of doc-1", hits[0].Metadata.Text)
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0}

	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err, "blob length must be a multiple of 4")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}), "zero magnitude scores zero")
	assert.Zero(t, cosineSimilarity([]float32{1}, []float32{1, 2}), "dimension mismatch scores zero")
}

package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// fakeQdrant keeps just enough state to serve the store's REST calls.
type fakeQdrant struct {
	size    int
	points  map[string]point
	creates int
	upserts int
	apiKeys []string
	search  []map[string]any
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: map[string]point{}}
}

func (f *fakeQdrant) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

		switch {
		case r.URL.Path == "/healthz":
			w.WriteHeader(http.StatusOK)

		case r.URL.Path == "/collections/docs" && r.Method == http.MethodGet:
			if f.size == 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprintf(w, `{"result":{"status":"green","points_count":%d,"config":{"params":{"vectors":{"size":%d,"distance":"Cosine"}}}}}`,
				len(f.points), f.size)

		case r.URL.Path == "/collections/docs" && r.Method == http.MethodPut:
			var req createCollectionRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.size = req.Vectors.Size
			f.creates++
			fmt.Fprint(w, `{"result":true,"status":"ok"}`)

		case r.URL.Path == "/collections/docs/points" && r.Method == http.MethodPut:
			if r.URL.Query().Get("wait") != "true" {
				http.Error(w, "missing wait", http.StatusBadRequest)
				return
			}
			var req upsertRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			for _, p := range req.Points {
				f.points[p.ID] = p
			}
			f.upserts++
			fmt.Fprint(w, `{"result":{"status":"acknowledged"},"status":"ok"}`)

		case r.URL.Path == "/collections/docs/points/count":
			fmt.Fprintf(w, `{"result":{"count":%d}}`, len(f.points))

		case r.URL.Path == "/collections/docs/points/scroll":
			if f.size == 0 {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			var req scrollRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			pts := make([]map[string]any, 0, req.Limit)
			for _, p := range f.points {
				if len(pts) >= req.Limit {
					break
				}
				pts = append(pts, map[string]any{"id": p.ID, "payload": p.Payload})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"points": pts}})

		case r.URL.Path == "/collections/docs/points/search":
			var req searchRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			results := f.search
			if len(results) > req.Limit {
				results = results[:req.Limit]
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"result": results})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestStore(t *testing.T, f *fakeQdrant) *Store {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	store, err := NewStore(Config{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return store
}

func TestEnsureCollectionCreates(t *testing.T) {
	f := newFakeQdrant()
	store := newTestStore(t, f)

	created, err := store.EnsureCollection(context.Background(), "docs", 768)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, f.creates)
	assert.Equal(t, 768, f.size)
}

func TestEnsureCollectionExisting(t *testing.T) {
	f := newFakeQdrant()
	f.size = 768
	store := newTestStore(t, f)

	created, err := store.EnsureCollection(context.Background(), "docs", 768)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Zero(t, f.creates)
}

func TestEnsureCollectionSizeMismatch(t *testing.T) {
	f := newFakeQdrant()
	f.size = 1536
	store := newTestStore(t, f)

	_, err := store.EnsureCollection(context.Background(), "docs", 768)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCollectionMismatch)
	assert.True(t, domain.IsConfiguration(err))
	assert.Zero(t, f.creates, "mismatch never re-creates")
}

func TestPopulated(t *testing.T) {
	f := newFakeQdrant()
	f.size = 4
	store := newTestStore(t, f)

	populated, err := store.Populated(context.Background(), "docs")
	require.NoError(t, err)
	assert.False(t, populated)

	f.points["p1"] = point{ID: "p1"}
	populated, err = store.Populated(context.Background(), "docs")
	require.NoError(t, err)
	assert.True(t, populated)
}

func TestOwner(t *testing.T) {
	f := newFakeQdrant()
	store := newTestStore(t, f)
	ctx := context.Background()

	owner, err := store.Owner(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, owner, "missing collection has no owner")

	f.size = 4
	owner, err = store.Owner(ctx, "docs")
	require.NoError(t, err)
	assert.Empty(t, owner, "empty collection has no owner")

	f.points["p1"] = point{ID: "p1", Payload: domain.DocumentMetadata{DocumentID: "doc-1", ChunkIndex: 0}}
	owner, err = store.Owner(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", owner)
}

func TestUpsertBatchesAndStableIDs(t *testing.T) {
	f := newFakeQdrant()
	f.size = 4
	store := newTestStore(t, f)

	records := make([]domain.EmbeddingRecord, 250)
	for i := range records {
		records[i] = domain.EmbeddingRecord{
			Vector: []float32{0.1, 0.2, 0.3, 0.4},
			Metadata: domain.DocumentMetadata{
				DocumentID:    "doc-1",
				DocumentTitle: "Guide",
				ChunkIndex:    i,
				Text:          fmt.Sprintf("chunk %d", i),
			},
		}
	}

	require.NoError(t, store.Upsert(context.Background(), "docs", records))
	assert.Equal(t, 3, f.upserts, "250 points in batches of 100")
	assert.Len(t, f.points, 250)

	// Re-indexing the same document overwrites the same point IDs.
	require.NoError(t, store.Upsert(context.Background(), "docs", records[:10]))
	assert.Len(t, f.points, 250, "stable IDs, no duplicates")

	id := pointID("doc-1", 3)
	p, ok := f.points[id]
	require.True(t, ok)
	assert.Equal(t, "chunk 3", p.Payload.Text)
	assert.Equal(t, 3, p.Payload.ChunkIndex)
	assert.NotEqual(t, id, pointID("doc-2", 3))
}

func TestSearchResortsTies(t *testing.T) {
	f := newFakeQdrant()
	f.size = 4
	f.search = []map[string]any{
		{"score": 0.9, "payload": map[string]any{"document_id": "doc-1", "chunk_index": 7, "text": "late tie"}},
		{"score": 0.9, "payload": map[string]any{"document_id": "doc-1", "chunk_index": 2, "text": "early tie"}},
		{"score": 0.95, "payload": map[string]any{"document_id": "doc-1", "chunk_index": 5, "text": "best"}},
	}
	store := newTestStore(t, f)

	hits, err := store.Search(context.Background(), "docs", []float32{0.1, 0.2, 0.3, 0.4}, 5, nil)

	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 5, hits[0].Metadata.ChunkIndex)
	assert.Equal(t, 2, hits[1].Metadata.ChunkIndex, "equal scores break by chunk index")
	assert.Equal(t, 7, hits[2].Metadata.ChunkIndex)
}

func TestSearchSendsFilter(t *testing.T) {
	var gotFilter *searchFilter
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/points/search") {
			var req searchRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			gotFilter = req.Filter
		}
		fmt.Fprint(w, `{"result":[]}`)
	}))
	defer srv.Close()

	store, err := NewStore(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = store.Search(context.Background(), "docs", []float32{1}, 5, &driven.SearchFilter{DocumentID: "doc-9"})
	require.NoError(t, err)

	require.NotNil(t, gotFilter)
	require.Len(t, gotFilter.Must, 1)
	assert.Equal(t, "document_id", gotFilter.Must[0].Key)
	assert.Equal(t, "doc-9", gotFilter.Must[0].Match.Value)
}

func TestStats(t *testing.T) {
	f := newFakeQdrant()
	f.size = 768
	f.points["a"] = point{}
	f.points["b"] = point{}
	store := newTestStore(t, f)

	stats, err := store.Stats(context.Background(), "docs")

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 768, stats.Dimension)
}

func TestStatsMissingCollection(t *testing.T) {
	store := newTestStore(t, newFakeQdrant())

	_, err := store.Stats(context.Background(), "docs")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHealthCheck(t *testing.T) {
	f := newFakeQdrant()
	store := newTestStore(t, f)

	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestServerErrorsAreTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store, err := NewStore(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	err = store.HealthCheck(context.Background())
	assert.True(t, domain.IsTransient(err), "5xx must be retryable: %v", err)

	_, err = store.Populated(context.Background(), "docs")
	assert.True(t, domain.IsTransient(err))
}

func TestConnectionErrorIsTransient(t *testing.T) {
	store, err := NewStore(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	err = store.HealthCheck(context.Background())
	assert.True(t, domain.IsTransient(err))
}

func TestAPIKeyHeaderSent(t *testing.T) {
	f := newFakeQdrant()
	store := newTestStore(t, f)

	_ = store.HealthCheck(context.Background())

	require.NotEmpty(t, f.apiKeys)
	assert.Equal(t, "test-key", f.apiKeys[0])
}

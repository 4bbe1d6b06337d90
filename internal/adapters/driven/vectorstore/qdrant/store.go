// Package qdrant provides a VectorStore adapter over the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:6333"
	DefaultTimeout = 30 * time.Second

	// maxUpsertBatch bounds points per upsert request.
	maxUpsertBatch = 100
)

// Config holds configuration for the Qdrant store.
type Config struct {
	// BaseURL is the Qdrant REST endpoint (default: http://localhost:6333).
	BaseURL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration
}

// Store talks to one Qdrant instance. Collections are created with
// cosine distance and on-disk vectors.
type Store struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewStore creates a Qdrant store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Store{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}, nil
}

// vectorParams is the collection vector configuration.
type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
	OnDisk   bool   `json:"on_disk,omitempty"`
}

// createCollectionRequest is the collection creation body.
type createCollectionRequest struct {
	Vectors vectorParams `json:"vectors"`
}

// collectionInfoResponse is the GET /collections/{name} response.
type collectionInfoResponse struct {
	Result struct {
		Status      string `json:"status"`
		PointsCount int    `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors vectorParams `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// point is one stored vector with its payload.
type point struct {
	ID      string                  `json:"id"`
	Vector  []float32               `json:"vector"`
	Payload domain.DocumentMetadata `json:"payload"`
}

// upsertRequest is the points upsert body.
type upsertRequest struct {
	Points []point `json:"points"`
}

// searchRequest is the points search body.
type searchRequest struct {
	Vector      []float32     `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *searchFilter `json:"filter,omitempty"`
}

// searchFilter narrows a search to matching payload fields.
type searchFilter struct {
	Must []fieldMatch `json:"must"`
}

type fieldMatch struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type matchValue struct {
	Value string `json:"value"`
}

// searchResponse is the points search response.
type searchResponse struct {
	Result []struct {
		Score   float64                 `json:"score"`
		Payload domain.DocumentMetadata `json:"payload"`
	} `json:"result"`
}

// scrollRequest is the points scroll body.
type scrollRequest struct {
	Limit       int  `json:"limit"`
	WithPayload bool `json:"with_payload"`
}

// scrollResponse is the points scroll response.
type scrollResponse struct {
	Result struct {
		Points []struct {
			Payload domain.DocumentMetadata `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

// countResponse is the points count response.
type countResponse struct {
	Result struct {
		Count int `json:"count"`
	} `json:"result"`
}

// EnsureCollection creates the collection when missing and reports
// whether it did. An existing collection with a different vector size is
// a configuration error; the store never silently re-creates data.
func (s *Store) EnsureCollection(ctx context.Context, name string, vectorSize int) (bool, error) {
	if vectorSize <= 0 {
		return false, domain.ConfigErrorf("qdrant: invalid vector size %d", vectorSize)
	}

	var info collectionInfoResponse
	err := s.do(ctx, http.MethodGet, "/collections/"+name, nil, &info)
	if err == nil {
		if got := info.Result.Config.Params.Vectors.Size; got != vectorSize {
			return false, fmt.Errorf("qdrant: collection %s has vector size %d, want %d: %w",
				name, got, vectorSize, domain.ErrCollectionMismatch)
		}
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	create := createCollectionRequest{
		Vectors: vectorParams{Size: vectorSize, Distance: "Cosine", OnDisk: true},
	}
	if err := s.do(ctx, http.MethodPut, "/collections/"+name, create, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Populated reports whether the collection holds at least one point.
func (s *Store) Populated(ctx context.Context, name string) (bool, error) {
	count, err := s.count(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return count > 0, nil
}

// Owner scrolls one point and returns its document ID, or "" when the
// collection is empty or missing.
func (s *Store) Owner(ctx context.Context, name string) (string, error) {
	req := scrollRequest{Limit: 1, WithPayload: true}
	var resp scrollResponse
	err := s.do(ctx, http.MethodPost, "/collections/"+name+"/points/scroll", req, &resp)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if len(resp.Result.Points) == 0 {
		return "", nil
	}
	return resp.Result.Points[0].Payload.DocumentID, nil
}

// Upsert writes records in bounded batches, waiting for each batch to
// land. Point IDs derive from document ID and chunk index, so
// re-indexing the same document overwrites instead of duplicating.
func (s *Store) Upsert(ctx context.Context, name string, records []domain.EmbeddingRecord) error {
	for start := 0; start < len(records); start += maxUpsertBatch {
		end := start + maxUpsertBatch
		if end > len(records) {
			end = len(records)
		}

		batch := records[start:end]
		points := make([]point, len(batch))
		for i, r := range batch {
			points[i] = point{
				ID:      pointID(r.Metadata.DocumentID, r.Metadata.ChunkIndex),
				Vector:  r.Vector,
				Payload: r.Metadata,
			}
		}

		path := "/collections/" + name + "/points?wait=true"
		if err := s.do(ctx, http.MethodPut, path, upsertRequest{Points: points}, nil); err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// Search returns the top results by cosine similarity. Qdrant leaves
// equal-score order unspecified, so results are re-sorted client-side:
// descending score, ties by ascending chunk index.
func (s *Store) Search(
	ctx context.Context, name string, vector []float32, limit int, filter *driven.SearchFilter,
) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	req := searchRequest{Vector: vector, Limit: limit, WithPayload: true}
	if filter != nil && filter.DocumentID != "" {
		req.Filter = &searchFilter{
			Must: []fieldMatch{{Key: "document_id", Match: matchValue{Value: filter.DocumentID}}},
		}
	}

	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, "/collections/"+name+"/points/search", req, &resp); err != nil {
		return nil, err
	}

	hits := make([]domain.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, domain.ScoredChunk{Metadata: r.Payload, Score: r.Score})
	}
	sortHits(hits)
	return hits, nil
}

// HealthCheck probes the instance health endpoint.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Stats returns point count and configured vector size.
func (s *Store) Stats(ctx context.Context, name string) (driven.CollectionStats, error) {
	var info collectionInfoResponse
	if err := s.do(ctx, http.MethodGet, "/collections/"+name, nil, &info); err != nil {
		return driven.CollectionStats{}, err
	}

	count, err := s.count(ctx, name)
	if err != nil {
		return driven.CollectionStats{}, err
	}

	return driven.CollectionStats{
		Count:     count,
		Dimension: info.Result.Config.Params.Vectors.Size,
	}, nil
}

// Close releases resources.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// count asks Qdrant for the exact point count.
func (s *Store) count(ctx context.Context, name string) (int, error) {
	body := map[string]bool{"exact": true}
	var resp countResponse
	if err := s.do(ctx, http.MethodPost, "/collections/"+name+"/points/count", body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// do performs one REST call and classifies failures: connection and 5xx
// problems are transient, 404 maps to ErrNotFound, other client errors
// are terminal.
func (s *Store) do(ctx context.Context, method, path string, in, out any) error {
	var reqBody io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("qdrant: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("qdrant: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Transient(fmt.Errorf("qdrant: %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Transient(fmt.Errorf("qdrant: read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("qdrant: %s %s: %w", method, path, domain.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.TransientErrorf("qdrant: %s %s: status %d: %s", method, path, resp.StatusCode, errBody(body))
	case resp.StatusCode >= 300:
		return fmt.Errorf("qdrant: %s %s: status %d: %s", method, path, resp.StatusCode, errBody(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return nil
}

// pointID derives a stable UUID for a chunk of a document.
func pointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%s#%d", documentID, chunkIndex)).String()
}

// sortHits orders by descending score, ties by ascending chunk index.
func sortHits(hits []domain.ScoredChunk) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Metadata.ChunkIndex < hits[j].Metadata.ChunkIndex
	})
}

// errBody compacts an error response body for messages.
func errBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

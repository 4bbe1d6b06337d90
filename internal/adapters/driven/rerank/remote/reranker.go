// Package remote implements the reranker port against an external
// reranking service. The service scores candidate passages against a
// query and returns per-candidate relevance; candidates scoring below
// the configured threshold are dropped.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

// Default configuration values.
const (
	DefaultThreshold = 0.1
	DefaultTimeout   = 30 * time.Second
)

// Config holds configuration for the remote reranker.
type Config struct {
	// BaseURL is the reranking service endpoint (required).
	BaseURL string

	// Threshold is the minimum relevance score a candidate must reach
	// to survive reranking (default: 0.1).
	Threshold float64

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Reranker scores candidates via the remote service.
type Reranker struct {
	client    *http.Client
	baseURL   string
	threshold float64
}

type rerankItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// rerankRequest is the service's scoring request: the query and the
// candidate passages, each as id/text pairs, plus the accepted score
// band and a result cap.
type rerankRequest struct {
	Query   []rerankItem `json:"query"`
	Context []rerankItem `json:"context"`
	Thresh  [2]float64   `json:"thresh"`
	Limit   int          `json:"limit"`
}

type rerankResult struct {
	ContextID string  `json:"context_id"`
	Score     float64 `json:"score"`
}

// NewReranker creates a remote reranker client.
func NewReranker(cfg Config) (*Reranker, error) {
	if cfg.BaseURL == "" {
		return nil, domain.ConfigErrorf("rerank: base URL is required")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Reranker{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		threshold: cfg.Threshold,
	}, nil
}

// Rerank scores candidates against the query. Results carry the
// service's relevance scores, sorted descending with ties broken by
// ascending chunk index, truncated to topN.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error) {
	if len(candidates) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if topN <= 0 {
		topN = len(candidates)
	}

	contextItems := make([]rerankItem, len(candidates))
	for i, c := range candidates {
		contextItems[i] = rerankItem{ID: strconv.Itoa(i), Text: c.Metadata.Text}
	}

	reqBody := rerankRequest{
		Query:   []rerankItem{{ID: "query_0", Text: query}},
		Context: contextItems,
		Thresh:  [2]float64{r.threshold, 1.0},
		Limit:   topN,
	}

	var results []rerankResult
	if err := r.post(ctx, "/rerank", reqBody, &results); err != nil {
		return nil, err
	}

	ranked := make([]domain.ScoredChunk, 0, len(results))
	for _, res := range results {
		idx, err := strconv.Atoi(res.ContextID)
		if err != nil || idx < 0 || idx >= len(candidates) {
			continue
		}
		if res.Score < r.threshold {
			continue
		}
		sc := candidates[idx]
		sc.Score = res.Score
		ranked = append(ranked, sc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Metadata.ChunkIndex < ranked[j].Metadata.ChunkIndex
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

// Name identifies the reranker for logging.
func (r *Reranker) Name() string {
	return "remote"
}

// Ping probes the service health endpoint. Wiring code uses it to fall
// back to the lexical reranker when the service is down.
func (r *Reranker) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("rerank: create health request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.TransientErrorf("rerank: health check: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.TransientErrorf("rerank: health check returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Reranker) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("rerank: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rerank: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return domain.TransientErrorf("rerank: %s: %v", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.TransientErrorf("rerank: %s returned status %d: %s", path, resp.StatusCode, errBody(resp.Body))
	default:
		return fmt.Errorf("rerank: %s returned status %d: %s", path, resp.StatusCode, errBody(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rerank: decode response: %w", err)
	}
	return nil
}

func errBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 200))
	if err != nil {
		return "<unreadable>"
	}
	return strings.TrimSpace(string(b))
}

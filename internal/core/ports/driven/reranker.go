package driven

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// Reranker reorders retrieved candidates by relevance to a query.
// Results are sorted by descending score with ties broken by ascending
// chunk index, truncated to topN.
type Reranker interface {
	// Rerank scores candidates against the query. Implementations may
	// drop candidates below an internal relevance threshold.
	Rerank(ctx context.Context, query string, candidates []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error)

	// Name identifies the reranker for logging.
	Name() string
}

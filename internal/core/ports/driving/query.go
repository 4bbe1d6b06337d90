package driving

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// QueryService answers ad-hoc questions against a processed collection.
type QueryService interface {
	// Ask embeds the question, retrieves and reranks passages, and
	// produces a grounded answer with citations.
	Ask(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error)
}

// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// LLMService provides the reasoning and generation operations of the
// pipeline. Skeleton operations return structured values parsed from
// schema-constrained model output; prose operations return plain text.
//
// Implementations may include:
//   - OpenAI (Responses API)
//   - OpenAI-compatible local inference servers via base URL override
type LLMService interface {
	// ProposeSkeleton drafts the initial report structure from the first
	// document batch.
	ProposeSkeleton(ctx context.Context, batchText string) (domain.SkeletonProposal, error)

	// ReviseSkeleton updates the structure from a later batch. The entire
	// current skeleton is supplied, never a delta.
	ReviseSkeleton(ctx context.Context, current *domain.Skeleton, batchText string) (domain.SkeletonRevision, error)

	// ComposeSection writes report prose for one section from reranked
	// supporting passages.
	ComposeSection(ctx context.Context, section domain.Section, passages []domain.ScoredChunk) (string, error)

	// Answer responds to an ad-hoc question from retrieved passages.
	Answer(ctx context.Context, question string, passages []domain.ScoredChunk) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

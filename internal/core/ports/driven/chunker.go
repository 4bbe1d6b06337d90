package driven

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// Chunker splits document text into ordered chunks.
// Chunks carry SequenceIndex 0..n-1 in document order; implementations
// must be deterministic for identical input and configuration.
type Chunker interface {
	// Chunk splits text. Empty or whitespace-only text yields no chunks.
	Chunk(ctx context.Context, text string) ([]domain.Chunk, error)
}

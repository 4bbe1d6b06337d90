package driven

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// DocumentLoader fetches and normalises a source document.
//
// Implementations exist for local files, GitHub repository paths and
// Google Drive files; a resolver dispatches on the source URI scheme.
// Bad URIs or credentials are configuration errors; network failures
// are transient.
type DocumentLoader interface {
	// Load returns the document named by source with cleaned text.
	Load(ctx context.Context, source string) (*domain.SourceDocument, error)
}

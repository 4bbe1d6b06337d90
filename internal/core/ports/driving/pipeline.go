package driving

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// PipelineService turns a source document into a structured report.
type PipelineService interface {
	// ProcessDocument runs the full pipeline: load, chunk, index,
	// batch, skeleton loop, synthesis. The returned report's status
	// states whether every section synthesized.
	ProcessDocument(ctx context.Context, req domain.ProcessRequest) (*domain.Report, error)

	// ResumeSkeleton re-enters the skeleton loop from an explicit batch
	// index with a caller-supplied last-good skeleton, then continues
	// through synthesis. Resumption is never automatic.
	ResumeSkeleton(ctx context.Context, req domain.ResumeRequest) (*domain.Report, error)
}

package driving

import (
	"context"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// InspectService surfaces pipeline diagnostics.
type InspectService interface {
	// Health probes each configured collaborator. It always returns a
	// result per component; failures are reported, not returned.
	Health(ctx context.Context) []domain.ComponentHealth

	// CollectionStats describes one vector collection.
	CollectionStats(ctx context.Context, collection string) (*domain.CollectionInfo, error)
}

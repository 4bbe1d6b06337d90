package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driving"
)

// Ensure InspectService implements the interface.
var _ driving.InspectService = (*InspectService)(nil)

// InspectService surfaces collaborator health and collection stats.
type InspectService struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
}

// NewInspectService creates an inspect service. The embedder and llm
// are optional; absent components are reported as not configured.
func NewInspectService(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
) *InspectService {
	return &InspectService{
		store:    store,
		embedder: embedder,
		llm:      llm,
	}
}

// Health probes each collaborator. Probe failures land in the result,
// never in an error return.
func (s *InspectService) Health(ctx context.Context) []domain.ComponentHealth {
	out := make([]domain.ComponentHealth, 0, 3)

	out = append(out, probe("vector store", func() error {
		if s.store == nil {
			return domain.ConfigErrorf("not configured")
		}
		return s.store.HealthCheck(ctx)
	}))

	out = append(out, probe("embedding", func() error {
		if s.embedder == nil {
			return domain.ConfigErrorf("not configured")
		}
		return s.embedder.Ping(ctx)
	}))

	out = append(out, probe("llm", func() error {
		if s.llm == nil {
			return domain.ConfigErrorf("not configured")
		}
		return s.llm.Ping(ctx)
	}))

	return out
}

// CollectionStats describes one collection, resolving a source name to
// its derived collection when needed.
func (s *InspectService) CollectionStats(ctx context.Context, collection string) (*domain.CollectionInfo, error) {
	if collection == "" {
		return nil, domain.ConfigErrorf("collection is required")
	}

	stats, err := s.store.Stats(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("stats %s: %w", collection, err)
	}

	return &domain.CollectionInfo{
		Name:      collection,
		Count:     stats.Count,
		Dimension: stats.Dimension,
		Populated: stats.Count > 0,
	}, nil
}

func probe(component string, fn func() error) domain.ComponentHealth {
	if err := fn(); err != nil {
		return domain.ComponentHealth{Component: component, OK: false, Detail: err.Error()}
	}
	return domain.ComponentHealth{Component: component, OK: true}
}

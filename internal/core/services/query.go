package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driving"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
	"github.com/custodia-labs/longdoc-cli/internal/retry"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService answers ad-hoc questions against a processed
// collection: embed, retrieve, rerank, answer.
type QueryService struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
	llm      driven.LLMService
	reranker driven.Reranker
	retry    retry.Policy

	topK         int
	contextLimit int
}

// NewQueryService creates a query service with default tuning.
func NewQueryService(
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	llm driven.LLMService,
	reranker driven.Reranker,
) *QueryService {
	return &QueryService{
		embedder:     embedder,
		store:        store,
		llm:          llm,
		reranker:     reranker,
		retry:        retry.DefaultPolicy(),
		topK:         DefaultTopK,
		contextLimit: DefaultContextLimit,
	}
}

// SetRetryPolicy overrides the backoff policy for external calls.
func (s *QueryService) SetRetryPolicy(p retry.Policy) {
	s.retry = p
}

// Ask answers a question from the collection's indexed chunks.
func (s *QueryService) Ask(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.ConfigErrorf("question is required")
	}

	collection, err := s.resolveCollection(req)
	if err != nil {
		return nil, err
	}

	logger.Section("Query")
	logger.Debug("Collection: %s, question: %q", collection, question)

	topK := req.TopK
	if topK <= 0 {
		topK = s.topK
	}

	var vec []float32
	err = s.retry.Do(ctx, "embed question", func(ctx context.Context) error {
		var callErr error
		vec, callErr = s.embedder.Embed(ctx, question)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	var candidates []domain.ScoredChunk
	err = s.retry.Do(ctx, "search", func(ctx context.Context) error {
		var callErr error
		candidates, callErr = s.store.Search(ctx, collection, vec, topK, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("collection %s has no indexed content: %w", collection, domain.ErrEmptyCollection)
	}
	logger.Debug("Retrieved %d candidates", len(candidates))

	passages := candidates
	limit := s.contextLimit
	if limit > len(passages) {
		limit = len(passages)
	}
	if s.reranker != nil {
		reranked, rerr := s.reranker.Rerank(ctx, question, candidates, s.contextLimit)
		if rerr != nil {
			logger.Warn("Reranker %s failed, keeping vector order: %v", s.reranker.Name(), rerr)
			passages = candidates[:limit]
		} else {
			passages = reranked
		}
	} else {
		passages = candidates[:limit]
	}

	var text string
	err = s.retry.Do(ctx, "answer", func(ctx context.Context) error {
		var callErr error
		text, callErr = s.llm.Answer(ctx, question, passages)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("answer: %w", err)
	}

	logger.Info("Answered from %d passages", len(passages))
	return &domain.Answer{
		Question:   question,
		Text:       text,
		Collection: collection,
		Passages:   passages,
	}, nil
}

// resolveCollection picks the explicit collection or derives one from
// the source name.
func (s *QueryService) resolveCollection(req domain.QueryRequest) (string, error) {
	if c := strings.TrimSpace(req.Collection); c != "" {
		return c, nil
	}
	if src := strings.TrimSpace(req.Source); src != "" {
		return DeriveCollectionName(SourceName(src)), nil
	}
	return "", domain.ConfigErrorf("either collection or source is required")
}

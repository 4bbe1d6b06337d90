package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
	"github.com/custodia-labs/longdoc-cli/internal/retry"
)

const (
	// DefaultTopK is the retrieval depth per section.
	DefaultTopK = 5

	// DefaultContextLimit is the number of passages kept after reranking.
	DefaultContextLimit = 5

	// DefaultSectionWorkers bounds parallel section synthesis.
	DefaultSectionWorkers = 3

	// snippetLen is the citation snippet length in runes.
	snippetLen = 160
)

// Synthesizer turns a sealed skeleton into a report, one retrieval and
// generation pass per section. Sections run in parallel but the report
// always comes out in skeleton order.
type Synthesizer struct {
	store    driven.VectorStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
	reranker driven.Reranker
	retry    retry.Policy

	workers      int
	topK         int
	contextLimit int
}

// NewSynthesizer creates a synthesizer with default tuning.
func NewSynthesizer(
	store driven.VectorStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	reranker driven.Reranker,
) *Synthesizer {
	return &Synthesizer{
		store:        store,
		embedder:     embedder,
		llm:          llm,
		reranker:     reranker,
		retry:        retry.DefaultPolicy(),
		workers:      DefaultSectionWorkers,
		topK:         DefaultTopK,
		contextLimit: DefaultContextLimit,
	}
}

// SetWorkers bounds parallel section synthesis.
func (s *Synthesizer) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// SetTopK sets the retrieval depth per section.
func (s *Synthesizer) SetTopK(k int) {
	if k > 0 {
		s.topK = k
	}
}

// SetContextLimit sets how many reranked passages reach the prompt.
func (s *Synthesizer) SetContextLimit(n int) {
	if n > 0 {
		s.contextLimit = n
	}
}

// SetRetryPolicy overrides the backoff policy for external calls.
func (s *Synthesizer) SetRetryPolicy(p retry.Policy) {
	s.retry = p
}

// Synthesize produces the report for a sealed skeleton. Individual
// section failures are isolated into placeholders; an unreachable
// vector store fails the whole report since every section depends on
// retrieval.
func (s *Synthesizer) Synthesize(
	ctx context.Context, sk *domain.Skeleton, collection string,
) (*domain.Report, error) {
	if sk == nil || !sk.Sealed() {
		return nil, domain.NewProcessingError("synthesis", errors.New("skeleton not sealed"))
	}

	logger.Section("Report Synthesis")
	logger.Debug("Collection: %s, sections: %d, workers: %d", collection, len(sk.Sections), s.workers)

	if err := s.store.HealthCheck(ctx); err != nil {
		return nil, domain.NewProcessingError("synthesis", fmt.Errorf("vector store unreachable: %w", err))
	}

	// Each worker writes only its own slot; assembly after Wait keeps
	// skeleton order regardless of completion order.
	slots := make([]domain.ReportSection, len(sk.Sections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := range sk.Sections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			section := sk.Sections[i]
			rendered, err := s.synthesizeSection(gctx, section, collection)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("Section %q failed: %v", section.Title, err)
				slots[i] = domain.ReportSection{
					Title:  section.Title,
					Failed: true,
					Error:  err.Error(),
				}
				return nil
			}
			slots[i] = rendered
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, domain.NewProcessingError("synthesis", err)
	}

	report := &domain.Report{
		DocumentID:      sk.DocumentID,
		Title:           sk.Title,
		SkeletonVersion: sk.Version,
		Sections:        slots,
		GeneratedAt:     time.Now().UTC(),
	}
	for _, sec := range slots {
		if sec.Failed {
			report.FailedSections = append(report.FailedSections, sec.Title)
		}
	}

	switch {
	case len(slots) > 0 && len(report.FailedSections) == len(slots):
		report.Status = domain.ReportStatusFailed
	case len(report.FailedSections) > 0:
		report.Status = domain.ReportStatusPartial
	default:
		report.Status = domain.ReportStatusComplete
	}

	logger.Info("Synthesis done: %d sections, %d failed, status %s",
		len(slots), len(report.FailedSections), report.Status)
	return report, nil
}

// synthesizeSection runs retrieve, rerank and compose for one section.
func (s *Synthesizer) synthesizeSection(
	ctx context.Context, section domain.Section, collection string,
) (domain.ReportSection, error) {
	query := section.Title
	if section.Summary != "" {
		query += " " + section.Summary
	}
	logger.Debug("Section %q: query %d chars", section.Title, len(query))

	var vec []float32
	err := s.retry.Do(ctx, "embed section query", func(ctx context.Context) error {
		var callErr error
		vec, callErr = s.embedder.Embed(ctx, query)
		return callErr
	})
	if err != nil {
		return domain.ReportSection{}, fmt.Errorf("embed query: %w", err)
	}

	var candidates []domain.ScoredChunk
	err = s.retry.Do(ctx, "search section candidates", func(ctx context.Context) error {
		var callErr error
		candidates, callErr = s.store.Search(ctx, collection, vec, s.topK, nil)
		return callErr
	})
	if err != nil {
		return domain.ReportSection{}, fmt.Errorf("search: %w", err)
	}
	logger.Debug("Section %q: %d candidates", section.Title, len(candidates))

	passages := s.rerank(ctx, query, candidates)

	var prose string
	err = s.retry.Do(ctx, "compose section", func(ctx context.Context) error {
		var callErr error
		prose, callErr = s.llm.ComposeSection(ctx, section, passages)
		return callErr
	})
	if err != nil {
		return domain.ReportSection{}, fmt.Errorf("compose: %w", err)
	}

	return domain.ReportSection{
		Title:     section.Title,
		Content:   prose,
		Citations: citations(passages),
	}, nil
}

// rerank applies the reranker, falling back to the vector ordering when
// it fails. Rerank problems never abort a section.
func (s *Synthesizer) rerank(
	ctx context.Context, query string, candidates []domain.ScoredChunk,
) []domain.ScoredChunk {
	limit := s.contextLimit
	if limit > len(candidates) {
		limit = len(candidates)
	}
	if s.reranker == nil || len(candidates) == 0 {
		return candidates[:limit]
	}

	reranked, err := s.reranker.Rerank(ctx, query, candidates, s.contextLimit)
	if err != nil {
		logger.Warn("Reranker %s failed, keeping vector order: %v", s.reranker.Name(), err)
		return candidates[:limit]
	}
	return reranked
}

// citations extracts citation records from the passages that reached
// the prompt.
func citations(passages []domain.ScoredChunk) []domain.Citation {
	out := make([]domain.Citation, 0, len(passages))
	for _, p := range passages {
		out = append(out, domain.Citation{
			ChunkIndex: p.Metadata.ChunkIndex,
			Score:      p.Score,
			Snippet:    snippet(p.Metadata.Text),
		})
	}
	return out
}

// snippet truncates text to snippetLen runes on a rune boundary.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLen {
		return text
	}
	return string(runes[:snippetLen]) + "..."
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driving"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
	"github.com/custodia-labs/longdoc-cli/internal/retry"
)

// Ensure PipelineService implements the interface.
var _ driving.PipelineService = (*PipelineService)(nil)

const (
	// DefaultEmbedConcurrency bounds parallel embed+upsert groups.
	DefaultEmbedConcurrency = 4

	// embedGroupSize is how many chunks one embed+upsert group carries.
	embedGroupSize = 64
)

// PipelineService coordinates the document-to-report pipeline:
// load, chunk, index, batch, skeleton loop, synthesis. Stages run
// strictly in order; a failed stage halts the run, nothing downstream
// substitutes defaults for missing upstream data.
type PipelineService struct {
	loader   driven.DocumentLoader
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	store    driven.VectorStore
	llm      driven.LLMService
	reranker driven.Reranker

	builder     *SkeletonBuilder
	synthesizer *Synthesizer
	retry       retry.Policy
	concurrency int
}

// NewPipelineService wires the pipeline from its driven ports.
func NewPipelineService(
	loader driven.DocumentLoader,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	llm driven.LLMService,
	reranker driven.Reranker,
) *PipelineService {
	return &PipelineService{
		loader:      loader,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		llm:         llm,
		reranker:    reranker,
		builder:     NewSkeletonBuilder(llm),
		synthesizer: NewSynthesizer(store, embedder, llm, reranker),
		retry:       retry.DefaultPolicy(),
		concurrency: DefaultEmbedConcurrency,
	}
}

// SetEmbedConcurrency bounds parallel embedding groups.
func (p *PipelineService) SetEmbedConcurrency(n int) {
	if n > 0 {
		p.concurrency = n
	}
}

// SetSectionWorkers bounds parallel section synthesis.
func (p *PipelineService) SetSectionWorkers(n int) {
	p.synthesizer.SetWorkers(n)
}

// SetRetryPolicy overrides the backoff policy across all stages.
func (p *PipelineService) SetRetryPolicy(pol retry.Policy) {
	p.retry = pol
	p.builder.SetRetryPolicy(pol)
	p.synthesizer.SetRetryPolicy(pol)
}

// ProcessDocument runs the full pipeline and returns the report.
func (p *PipelineService) ProcessDocument(
	ctx context.Context, req domain.ProcessRequest,
) (*domain.Report, error) {
	run, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	skeleton, err := p.builder.Build(ctx, run.documentID, run.batches, len(run.chunks))
	if err != nil {
		return nil, err
	}

	return p.synthesize(ctx, req, skeleton, run.collection)
}

// ResumeSkeleton re-enters the skeleton loop from an explicit batch
// index with a caller-supplied last-good skeleton, then continues
// through synthesis. Chunks and batches are re-derived from the
// source; the derivation is deterministic, so indices line up with
// the failed run.
func (p *PipelineService) ResumeSkeleton(
	ctx context.Context, req domain.ResumeRequest,
) (*domain.Report, error) {
	if req.Skeleton == nil {
		return nil, domain.ConfigErrorf("resume requires the last-good skeleton")
	}

	run, err := p.prepare(ctx, req.ProcessRequest)
	if err != nil {
		return nil, err
	}

	skeleton, err := p.builder.Resume(ctx, req.Skeleton, run.batches, req.FromBatch, len(run.chunks))
	if err != nil {
		return nil, err
	}

	return p.synthesize(ctx, req.ProcessRequest, skeleton, run.collection)
}

// preparedRun carries the indexed document state shared by process and
// resume.
type preparedRun struct {
	documentID string
	collection string
	chunks     []domain.Chunk
	batches    []domain.Batch
}

// prepare runs the stages up to and including batching: load, chunk,
// ensure collection, embed+upsert unless already populated, pack.
func (p *PipelineService) prepare(
	ctx context.Context, req domain.ProcessRequest,
) (*preparedRun, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, domain.ConfigErrorf("source is required")
	}

	logger.Section("Document Processing")
	logger.Info("Source: %s", source)

	doc, err := p.loader.Load(ctx, source)
	if err != nil {
		return nil, stageError("load", err)
	}
	logger.Info("Loaded %q (%d chars)", doc.Title, len(doc.Text))

	chunks, err := p.chunker.Chunk(ctx, doc.Text)
	if err != nil {
		return nil, stageError("chunk", err)
	}
	if len(chunks) == 0 {
		return nil, stageError("chunk", fmt.Errorf("document %q produced no chunks", source))
	}
	logger.Info("Chunked into %d chunks", len(chunks))

	name := SourceName(source)
	documentID := DocumentKey(name)
	collection := strings.TrimSpace(req.Collection)
	if collection == "" {
		collection = DeriveCollectionName(name)
	}
	logger.Info("Collection: %s", collection)

	var created bool
	err = p.retry.Do(ctx, "ensure collection", func(ctx context.Context) error {
		var callErr error
		created, callErr = p.store.EnsureCollection(ctx, collection, p.embedder.Dimensions())
		return callErr
	})
	if err != nil {
		return nil, stageError("ensure collection", err)
	}

	var populated bool
	err = p.retry.Do(ctx, "check collection", func(ctx context.Context) error {
		var callErr error
		populated, callErr = p.store.Populated(ctx, collection)
		return callErr
	})
	if err != nil {
		return nil, stageError("check collection", err)
	}

	if populated {
		var owner string
		err = p.retry.Do(ctx, "check collection owner", func(ctx context.Context) error {
			var callErr error
			owner, callErr = p.store.Owner(ctx, collection)
			return callErr
		})
		if err != nil {
			return nil, stageError("check collection", err)
		}
		if owner != documentID {
			return nil, stageError("check collection", domain.ConfigErrorf(
				"collection %s already holds document %s, not %s (%s); use a different collection",
				collection, owner, documentID, name))
		}
		logger.Info("Collection already populated, skipping embedding")
	} else {
		if !created {
			logger.Debug("Collection exists but holds no vectors, embedding now")
		}
		if err := p.index(ctx, doc, documentID, collection, chunks); err != nil {
			return nil, stageError("index", err)
		}
	}

	batches := NewBatcher(req.MaxChars).Pack(chunks)
	logger.Info("Packed %d chunks into %d batches", len(chunks), len(batches))

	return &preparedRun{
		documentID: documentID,
		collection: collection,
		chunks:     chunks,
		batches:    batches,
	}, nil
}

// index embeds all chunks and upserts them, in groups, in parallel.
// Every group lands before batching starts.
func (p *PipelineService) index(
	ctx context.Context, doc *domain.SourceDocument, documentID, collection string, chunks []domain.Chunk,
) error {
	logger.Section("Embedding & Upsert")
	logger.Debug("%d chunks in groups of %d, concurrency %d", len(chunks), embedGroupSize, p.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for start := 0; start < len(chunks); start += embedGroupSize {
		end := start + embedGroupSize
		if end > len(chunks) {
			end = len(chunks)
		}
		group := chunks[start:end]

		g.Go(func() error {
			texts := make([]string, len(group))
			for i, c := range group {
				texts[i] = c.Text
			}

			var vectors [][]float32
			err := p.retry.Do(gctx, "embed chunk group", func(ctx context.Context) error {
				var callErr error
				vectors, callErr = p.embedder.EmbedBatch(ctx, texts)
				return callErr
			})
			if err != nil {
				return fmt.Errorf("embed chunks %d-%d: %w", group[0].SequenceIndex, group[len(group)-1].SequenceIndex, err)
			}
			if len(vectors) != len(group) {
				return fmt.Errorf("embed chunks %d-%d: got %d vectors for %d texts",
					group[0].SequenceIndex, group[len(group)-1].SequenceIndex, len(vectors), len(group))
			}

			records := make([]domain.EmbeddingRecord, len(group))
			for i, c := range group {
				records[i] = domain.EmbeddingRecord{
					Vector: vectors[i],
					Metadata: domain.DocumentMetadata{
						DocumentID:    documentID,
						DocumentTitle: doc.Title,
						ChunkIndex:    c.SequenceIndex,
						Text:          c.Text,
					},
				}
			}

			err = p.retry.Do(gctx, "upsert chunk group", func(ctx context.Context) error {
				return p.store.Upsert(ctx, collection, records)
			})
			if err != nil {
				return fmt.Errorf("upsert chunks %d-%d: %w", group[0].SequenceIndex, group[len(group)-1].SequenceIndex, err)
			}

			logger.Debug("Indexed chunks %d-%d", group[0].SequenceIndex, group[len(group)-1].SequenceIndex)
			return nil
		})
	}

	return g.Wait()
}

// synthesize runs the synthesizer with per-request tuning applied to a
// per-run copy, so concurrent runs never see each other's overrides.
func (p *PipelineService) synthesize(
	ctx context.Context, req domain.ProcessRequest, skeleton *domain.Skeleton, collection string,
) (*domain.Report, error) {
	syn := *p.synthesizer
	syn.SetTopK(req.TopK)
	syn.SetContextLimit(req.ContextLimit)

	report, err := syn.Synthesize(ctx, skeleton, collection)
	if err != nil {
		return nil, err
	}

	logger.Info("Report %q: status %s, %d sections", report.Title, report.Status, len(report.Sections))
	return report, nil
}

// stageError classifies a stage failure: configuration errors pass
// through for immediate surfacing, everything else becomes a
// ProcessingError naming the stage.
func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsConfiguration(err) {
		return fmt.Errorf("%s: %w", stage, err)
	}
	if errors.Is(err, domain.ErrProcessing) {
		return err
	}
	return domain.NewProcessingError(stage, err)
}

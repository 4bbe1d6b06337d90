package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
	"github.com/custodia-labs/longdoc-cli/internal/retry"
)

// SkeletonBuilder runs the sequential reasoning loop that turns
// batches into a report skeleton. The loop is strictly ordered: each
// step sees the entire current skeleton plus one batch, never a delta,
// and bumps the version exactly once.
type SkeletonBuilder struct {
	llm   driven.LLMService
	retry retry.Policy
}

// NewSkeletonBuilder creates a builder using the default retry policy.
func NewSkeletonBuilder(llm driven.LLMService) *SkeletonBuilder {
	return &SkeletonBuilder{
		llm:   llm,
		retry: retry.DefaultPolicy(),
	}
}

// SetRetryPolicy overrides the backoff policy for reasoning calls.
func (b *SkeletonBuilder) SetRetryPolicy(p retry.Policy) {
	b.retry = p
}

// Build runs the loop over all batches and returns the sealed skeleton.
// chunkCount bounds the supporting indices the model may cite.
func (b *SkeletonBuilder) Build(
	ctx context.Context, documentID string, batches []domain.Batch, chunkCount int,
) (*domain.Skeleton, error) {
	sk := domain.NewSkeleton(documentID)
	return b.run(ctx, sk, batches, 0, chunkCount)
}

// Resume continues a failed run from batch index from with the
// caller-supplied last-good skeleton. The skeleton must not be sealed
// and its version must equal from, so that the finished skeleton still
// reflects one transition per batch.
func (b *SkeletonBuilder) Resume(
	ctx context.Context, lastGood *domain.Skeleton, batches []domain.Batch, from, chunkCount int,
) (*domain.Skeleton, error) {
	if lastGood == nil {
		return nil, domain.ConfigErrorf("resume requires a last-good skeleton")
	}
	if lastGood.Sealed() {
		return nil, fmt.Errorf("resume: %w", domain.ErrSkeletonSealed)
	}
	if from < 0 || from > len(batches) {
		return nil, domain.ConfigErrorf("resume batch index %d out of range (have %d batches)", from, len(batches))
	}
	if lastGood.Version != from {
		return nil, domain.ConfigErrorf(
			"resume batch index %d does not match skeleton version %d", from, lastGood.Version)
	}

	logger.Info("Resuming skeleton loop at batch %d/%d (version %d)", from, len(batches), lastGood.Version)
	return b.run(ctx, lastGood.Clone(), batches, from, chunkCount)
}

// run applies batches[from:] to sk and seals it.
func (b *SkeletonBuilder) run(
	ctx context.Context, sk *domain.Skeleton, batches []domain.Batch, from, chunkCount int,
) (*domain.Skeleton, error) {
	logger.Section("Skeleton Loop")
	logger.Debug("Batches: %d, starting at %d, chunk count: %d", len(batches), from, chunkCount)

	for i := from; i < len(batches); i++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewBatchProcessingError("skeleton", i, sk, err)
		}

		batch := batches[i]
		logger.Debug("Batch %d/%d: chunks %d-%d, %d chars",
			i+1, len(batches), batch.FirstIndex(), batch.LastIndex(), batch.CharLen())

		if err := b.applyBatch(ctx, sk, batch, i, chunkCount); err != nil {
			logger.Warn("Batch %d failed after retries: %v", i, err)
			return nil, domain.NewBatchProcessingError("skeleton", i, sk, err)
		}

		logger.Debug("Skeleton version %d: %d sections", sk.Version, len(sk.Sections))
	}

	sk.Seal()
	logger.Info("Skeleton sealed: version %d, %d sections [%s]",
		sk.Version, len(sk.Sections), strings.Join(sk.SectionTitles(), ", "))
	return sk, nil
}

// applyBatch performs one reasoning step with bounded retry. The
// skeleton is only mutated after the model call succeeds, so a retried
// or abandoned batch never leaves a half-applied transition.
func (b *SkeletonBuilder) applyBatch(
	ctx context.Context, sk *domain.Skeleton, batch domain.Batch, index, chunkCount int,
) error {
	if index == 0 && sk.Version == 0 && len(sk.Sections) == 0 {
		var proposal domain.SkeletonProposal
		err := b.retry.Do(ctx, fmt.Sprintf("propose skeleton (batch %d)", index), func(ctx context.Context) error {
			var callErr error
			proposal, callErr = b.llm.ProposeSkeleton(ctx, batch.PromptText())
			return callErr
		})
		if err != nil {
			return fmt.Errorf("propose skeleton: %w", err)
		}

		stats, err := sk.ApplyProposal(proposal, chunkCount)
		if err != nil {
			return fmt.Errorf("apply proposal: %w", err)
		}
		logBatchStats(index, stats)
		return nil
	}

	var revision domain.SkeletonRevision
	err := b.retry.Do(ctx, fmt.Sprintf("revise skeleton (batch %d)", index), func(ctx context.Context) error {
		var callErr error
		revision, callErr = b.llm.ReviseSkeleton(ctx, sk, batch.PromptText())
		return callErr
	})
	if err != nil {
		return fmt.Errorf("revise skeleton: %w", err)
	}

	stats, err := sk.ApplyRevision(revision, chunkCount)
	if err != nil {
		return fmt.Errorf("apply revision: %w", err)
	}
	logBatchStats(index, stats)
	return nil
}

func logBatchStats(index int, stats domain.ApplyStats) {
	if stats.IndicesDropped > 0 {
		logger.Warn("Batch %d: dropped %d out-of-range supporting indices", index, stats.IndicesDropped)
	}
	if stats.Reordered {
		logger.Info("Batch %d: sections explicitly reordered", index)
	}
	logger.Debug("Batch %d applied: +%d sections, %d updated", index, stats.SectionsAdded, stats.SectionsUpdated)
}

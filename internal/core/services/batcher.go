package services

import (
	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// DefaultMaxBatchChars is the reasoning batch character budget.
const DefaultMaxBatchChars = 5000

// Batcher groups ordered chunks into reasoning batches.
// Pack is pure and deterministic: same chunks and budget, same batches.
type Batcher struct {
	maxChars int
}

// NewBatcher creates a batcher with the given character budget.
// Non-positive budgets fall back to DefaultMaxBatchChars.
func NewBatcher(maxChars int) *Batcher {
	if maxChars <= 0 {
		maxChars = DefaultMaxBatchChars
	}
	return &Batcher{maxChars: maxChars}
}

// MaxChars returns the configured budget.
func (b *Batcher) MaxChars() int {
	return b.maxChars
}

// Pack greedily fills batches in chunk order. A batch closes when the
// next chunk would push it past the budget. A chunk longer than the
// budget forms its own batch; chunks are never split or reordered.
// Empty input yields no batches.
func (b *Batcher) Pack(chunks []domain.Chunk) []domain.Batch {
	if len(chunks) == 0 {
		return nil
	}

	var batches []domain.Batch
	var current []domain.Chunk
	currentLen := 0

	for _, c := range chunks {
		n := c.CharLen()
		if len(current) > 0 && currentLen+n > b.maxChars {
			batches = append(batches, domain.Batch{Chunks: current})
			current = nil
			currentLen = 0
		}
		current = append(current, c)
		currentLen += n
	}
	if len(current) > 0 {
		batches = append(batches, domain.Batch{Chunks: current})
	}

	return batches
}

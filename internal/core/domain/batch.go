package domain

import (
	"fmt"
	"strings"
)

// Batch is an order-preserving group of chunks processed together in one
// reasoning step. A batch's CharLen never exceeds the configured budget
// unless it holds a single oversized chunk. Batches partition the chunk
// sequence: no gaps, no reordering, no chunk split across batches.
type Batch struct {
	// Chunks are the member chunks in document order.
	Chunks []Chunk
}

// CharLen returns the summed character length of the member chunks.
// Separators added for prompting are not counted against the budget.
func (b Batch) CharLen() int {
	total := 0
	for _, c := range b.Chunks {
		total += c.CharLen()
	}
	return total
}

// FirstIndex returns the SequenceIndex of the first chunk, or -1 for an
// empty batch.
func (b Batch) FirstIndex() int {
	if len(b.Chunks) == 0 {
		return -1
	}
	return b.Chunks[0].SequenceIndex
}

// LastIndex returns the SequenceIndex of the last chunk, or -1 for an
// empty batch.
func (b Batch) LastIndex() int {
	if len(b.Chunks) == 0 {
		return -1
	}
	return b.Chunks[len(b.Chunks)-1].SequenceIndex
}

// PromptText renders the batch for the reasoning step. Each chunk is
// labelled with its sequence index so the model can cite supporting
// chunk indices that survive referential-integrity checks.
func (b Batch) PromptText() string {
	var sb strings.Builder
	for i, c := range b.Chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Chunk %d]\n%s", c.SequenceIndex, c.Text)
	}
	return sb.String()
}

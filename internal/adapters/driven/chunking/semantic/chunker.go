// Package semantic splits document text into chunks along topical
// boundaries. Sentences are embedded and a new chunk starts where the
// cosine similarity between the next sentence and the running chunk
// drops below a threshold. A fixed-size mode needs no embedder and
// serves as the fallback when none is configured.
package semantic

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// Default configuration values.
const (
	DefaultThreshold = 0.62
	DefaultMinSize   = 200
	DefaultMaxSize   = 2000

	DefaultFixedSize    = 1000
	DefaultFixedOverlap = 200
)

// Chunker splits text into ordered chunks. All sizes count runes, not
// bytes, matching the character budgets used elsewhere in the pipeline.
type Chunker struct {
	embedder driven.EmbeddingService

	threshold float64
	minSize   int
	maxSize   int

	fixed        bool
	fixedSize    int
	fixedOverlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithThreshold sets the similarity boundary threshold.
func WithThreshold(t float64) Option {
	return func(c *Chunker) {
		if t > 0 && t < 1 {
			c.threshold = t
		}
	}
}

// WithMinSize sets the minimum chunk size in runes. Below it no
// similarity boundary is taken.
func WithMinSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.minSize = n
		}
	}
}

// WithMaxSize sets the hard maximum chunk size in runes.
func WithMaxSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

// WithFixedSize switches to fixed-size chunking with the given window
// and overlap, ignoring sentence structure and the embedder.
func WithFixedSize(size, overlap int) Option {
	return func(c *Chunker) {
		c.fixed = true
		if size > 0 {
			c.fixedSize = size
		}
		if overlap >= 0 {
			c.fixedOverlap = overlap
		}
	}
}

// New creates a chunker. A nil embedder forces fixed-size mode.
func New(embedder driven.EmbeddingService, opts ...Option) *Chunker {
	c := &Chunker{
		embedder:     embedder,
		threshold:    DefaultThreshold,
		minSize:      DefaultMinSize,
		maxSize:      DefaultMaxSize,
		fixedSize:    DefaultFixedSize,
		fixedOverlap: DefaultFixedOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.embedder == nil {
		c.fixed = true
	}
	if c.minSize >= c.maxSize {
		c.minSize = c.maxSize / 4
	}
	if c.fixedOverlap >= c.fixedSize {
		c.fixedOverlap = c.fixedSize / 4
	}

	return c
}

// Chunk splits text. Empty or whitespace-only text yields no chunks.
func (c *Chunker) Chunk(ctx context.Context, text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if c.fixed {
		return c.fixedChunks(text), nil
	}
	return c.semanticChunks(ctx, text)
}

// fixedChunks slides a rune window of fixedSize with fixedOverlap over
// the raw text.
func (c *Chunker) fixedChunks(text string) []domain.Chunk {
	runes := []rune(text)
	step := c.fixedSize - c.fixedOverlap

	chunks := make([]domain.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + c.fixedSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Text:          string(runes[start:end]),
			SequenceIndex: len(chunks),
			SourceOffset:  start,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// semanticChunks packs sentences into chunks, starting a new chunk when
// the next sentence no longer resembles the running one or the hard
// maximum would be exceeded.
func (c *Chunker) semanticChunks(ctx context.Context, text string) ([]domain.Chunk, error) {
	sentences := splitSentences(text, c.maxSize)
	if len(sentences) == 0 {
		return nil, nil
	}

	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.text
	}

	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("semantic chunking: embed sentences: %w", err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("semantic chunking: got %d vectors for %d sentences", len(vectors), len(sentences))
	}

	var (
		chunks   []domain.Chunk
		cur      []sentence
		curRunes int
		sum      []float64
	)

	flush := func() {
		if len(cur) == 0 {
			return
		}
		parts := make([]string, len(cur))
		for i, s := range cur {
			parts[i] = s.text
		}
		chunks = append(chunks, domain.Chunk{
			Text:          strings.Join(parts, " "),
			SequenceIndex: len(chunks),
			SourceOffset:  cur[0].offset,
		})
		cur = nil
		curRunes = 0
		sum = nil
	}

	for i, s := range sentences {
		joined := curRunes + s.runes
		if len(cur) > 0 {
			joined++ // separator space
		}
		if len(cur) > 0 && (joined > c.maxSize || (curRunes >= c.minSize && cosine(sum, vectors[i]) < c.threshold)) {
			flush()
			joined = s.runes
		}
		cur = append(cur, s)
		curRunes = joined
		sum = addVector(sum, vectors[i])
	}
	flush()

	return chunks, nil
}

// sentence is a segment of the document with its rune offset.
type sentence struct {
	text   string
	offset int
	runes  int
}

// splitSentences segments text at sentence-ending punctuation and
// paragraph breaks. Sentences longer than maxSize are split again at
// word boundaries so the hard maximum always holds.
func splitSentences(text string, maxSize int) []sentence {
	runes := []rune(text)

	var raw []sentence
	start := 0
	for i := 0; i < len(runes); i++ {
		boundary := false
		switch runes[i] {
		case '.', '!', '?':
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				boundary = true
			}
		case '\n':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				boundary = true
			}
		}
		if boundary {
			if s, ok := trimmedSentence(runes, start, i+1); ok {
				raw = append(raw, s)
			}
			start = i + 1
		}
	}
	if s, ok := trimmedSentence(runes, start, len(runes)); ok {
		raw = append(raw, s)
	}

	out := make([]sentence, 0, len(raw))
	for _, s := range raw {
		out = append(out, splitOversized(s, maxSize)...)
	}
	return out
}

// trimmedSentence trims whitespace off a rune range, keeping the offset
// pointed at the first retained rune.
func trimmedSentence(runes []rune, start, end int) (sentence, bool) {
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start >= end {
		return sentence{}, false
	}
	return sentence{
		text:   string(runes[start:end]),
		offset: start,
		runes:  end - start,
	}, true
}

// splitOversized breaks a sentence longer than maxSize at the last word
// boundary inside each window, hard-cutting when a single word exceeds
// the window.
func splitOversized(s sentence, maxSize int) []sentence {
	if s.runes <= maxSize {
		return []sentence{s}
	}

	runes := []rune(s.text)
	var out []sentence
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			cut := -1
			for j := end; j > start; j-- {
				if unicode.IsSpace(runes[j-1]) {
					cut = j - 1
					break
				}
			}
			if cut > start {
				end = cut
			}
		}

		ps, pe := start, end
		for ps < pe && unicode.IsSpace(runes[ps]) {
			ps++
		}
		for pe > ps && unicode.IsSpace(runes[pe-1]) {
			pe--
		}
		if ps < pe {
			out = append(out, sentence{
				text:   string(runes[ps:pe]),
				offset: s.offset + ps,
				runes:  pe - ps,
			})
		}

		start = end
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return out
}

// cosine compares the running chunk vector sum with a sentence vector.
// Comparing against the sum equals comparing against the mean.
func cosine(sum []float64, v []float32) float64 {
	if len(sum) != len(v) {
		return 0
	}
	var dot, na, nb float64
	for i := range v {
		b := float64(v[i])
		dot += sum[i] * b
		na += sum[i] * sum[i]
		nb += b * b
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / math.Sqrt(na*nb)
}

func addVector(sum []float64, v []float32) []float64 {
	if sum == nil {
		sum = make([]float64, len(v))
	}
	for i := range v {
		if i < len(sum) {
			sum[i] += float64(v[i])
		}
	}
	return sum
}

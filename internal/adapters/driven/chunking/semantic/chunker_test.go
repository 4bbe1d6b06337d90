package semantic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

// mockEmbedder returns fixed vectors per sentence text so similarity
// boundaries are fully controlled by the test.
type mockEmbedder struct {
	vectors map[string][]float32
	err     error
	batches int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.batches++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{1, 0}
		}
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return 2 }
func (m *mockEmbedder) ModelName() string          { return "mock-embed" }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error               { return nil }

func chunkTexts(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestChunkEmptyText(t *testing.T) {
	c := New(nil)

	chunks, err := c.Chunk(context.Background(), "   \n\t ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFixedSizeWindows(t *testing.T) {
	c := New(nil) // nil embedder forces fixed mode

	text := strings.Repeat("x", 2500)
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].SourceOffset)
	assert.Equal(t, 800, chunks[1].SourceOffset)
	assert.Equal(t, 1600, chunks[2].SourceOffset)
	assert.Equal(t, 1000, chunks[0].CharLen())
	assert.Equal(t, 1000, chunks[1].CharLen())
	assert.Equal(t, 900, chunks[2].CharLen())
	for i, ch := range chunks {
		assert.Equal(t, i, ch.SequenceIndex)
	}
}

func TestFixedSizeCountsRunes(t *testing.T) {
	c := New(nil, WithFixedSize(500, 100))

	text := strings.Repeat("é", 1200)
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, 0, chunks[0].SourceOffset)
	assert.Equal(t, 400, chunks[1].SourceOffset)
	assert.Equal(t, 800, chunks[2].SourceOffset)
	assert.Equal(t, 500, chunks[0].CharLen())
	assert.Equal(t, 400, chunks[2].CharLen())
}

func TestFixedSizeOptionSkipsEmbedder(t *testing.T) {
	emb := &mockEmbedder{}
	c := New(emb, WithFixedSize(100, 0))

	_, err := c.Chunk(context.Background(), strings.Repeat("word ", 50))
	require.NoError(t, err)
	assert.Zero(t, emb.batches, "fixed mode should not embed")
}

func TestSemanticBoundaryOnTopicShift(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"Alpha routing one.": {1, 0},
		"Alpha routing two.": {1, 0},
		"Beta fruit one.":    {0, 1},
		"Beta fruit two.":    {0, 1},
	}}
	c := New(emb, WithMinSize(10))

	text := "Alpha routing one. Alpha routing two. Beta fruit one. Beta fruit two."
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Alpha routing one. Alpha routing two.", chunks[0].Text)
	assert.Equal(t, "Beta fruit one. Beta fruit two.", chunks[1].Text)
	assert.Equal(t, 0, chunks[0].SourceOffset)
	assert.Equal(t, strings.Index(text, "Beta"), chunks[1].SourceOffset)
	assert.Equal(t, 0, chunks[0].SequenceIndex)
	assert.Equal(t, 1, chunks[1].SequenceIndex)
	assert.Equal(t, 1, emb.batches, "all sentences embedded in one batch")
}

func TestSemanticRespectsMinSize(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"Alpha routing one.": {1, 0},
		"Beta fruit one.":    {0, 1},
	}}
	c := New(emb, WithMinSize(1000))

	chunks, err := c.Chunk(context.Background(), "Alpha routing one. Beta fruit one.")
	require.NoError(t, err)

	require.Len(t, chunks, 1, "below min size no similarity boundary is taken")
	assert.Equal(t, "Alpha routing one. Beta fruit one.", chunks[0].Text)
}

func TestSemanticThreshold(t *testing.T) {
	vectors := map[string][]float32{
		"First topic sentence.":  {1, 0},
		"Second topic sentence.": {0.8, 0.6},
	}
	text := "First topic sentence. Second topic sentence."

	strict := New(&mockEmbedder{vectors: vectors}, WithMinSize(10), WithThreshold(0.95))
	chunks, err := strict.Chunk(context.Background(), text)
	require.NoError(t, err)
	assert.Len(t, chunks, 2, "similarity 0.8 is below a 0.95 threshold")

	lax := New(&mockEmbedder{vectors: vectors}, WithMinSize(10))
	chunks, err = lax.Chunk(context.Background(), text)
	require.NoError(t, err)
	assert.Len(t, chunks, 1, "similarity 0.8 clears the default threshold")
}

func TestSemanticMaxSizeForcesBoundary(t *testing.T) {
	// All sentences share a topic; only the size cap splits them.
	emb := &mockEmbedder{}
	c := New(emb, WithMaxSize(40))

	text := "Aaaa bbbb cccc one. Aaaa bbbb cccc two. Aaaa bbbb cccc tri. Aaaa bbbb cccc for."
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.CharLen(), 40)
	}
	assert.Equal(t, []string{
		"Aaaa bbbb cccc one. Aaaa bbbb cccc two.",
		"Aaaa bbbb cccc tri. Aaaa bbbb cccc for.",
	}, chunkTexts(chunks))
}

func TestSemanticSplitsOversizedSentence(t *testing.T) {
	emb := &mockEmbedder{}
	c := New(emb, WithMaxSize(10))

	chunks, err := c.Chunk(context.Background(), "aaaa bbbb cccc dddd eeee")
	require.NoError(t, err)

	assert.Equal(t, []string{"aaaa bbbb", "cccc dddd", "eeee"}, chunkTexts(chunks))
	assert.Equal(t, 0, chunks[0].SourceOffset)
	assert.Equal(t, 10, chunks[1].SourceOffset)
	assert.Equal(t, 20, chunks[2].SourceOffset)
}

func TestSemanticEmbedderErrorPropagates(t *testing.T) {
	emb := &mockEmbedder{err: errors.New("embedding service down")}
	c := New(emb)

	_, err := c.Chunk(context.Background(), "Some sentence here.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service down")
}

func TestSemanticDeterministic(t *testing.T) {
	text := "Alpha routing one. Alpha routing two. Beta fruit one. Beta fruit two."
	vectors := map[string][]float32{
		"Alpha routing one.": {1, 0},
		"Alpha routing two.": {1, 0},
		"Beta fruit one.":    {0, 1},
		"Beta fruit two.":    {0, 1},
	}

	a, err := New(&mockEmbedder{vectors: vectors}, WithMinSize(10)).Chunk(context.Background(), text)
	require.NoError(t, err)
	b, err := New(&mockEmbedder{vectors: vectors}, WithMinSize(10)).Chunk(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSplitSentencesOffsets(t *testing.T) {
	text := "Héllo wörld. Second sentence!\n\nNew paragraph here."
	sentences := splitSentences(text, 2000)

	require.Len(t, sentences, 3)
	assert.Equal(t, "Héllo wörld.", sentences[0].text)
	assert.Equal(t, 0, sentences[0].offset)
	assert.Equal(t, "Second sentence!", sentences[1].text)
	assert.Equal(t, 13, sentences[1].offset, "offsets count runes, not bytes")
	assert.Equal(t, "New paragraph here.", sentences[2].text)
	assert.Equal(t, 31, sentences[2].offset)
}

func TestSplitSentencesSkipsAbbreviationLikeBreaks(t *testing.T) {
	// A period not followed by whitespace is not a boundary.
	sentences := splitSentences("See section 2.5 for details. Next sentence.", 2000)

	require.Len(t, sentences, 2)
	assert.Equal(t, "See section 2.5 for details.", sentences[0].text)
	assert.Equal(t, "Next sentence.", sentences[1].text)
}

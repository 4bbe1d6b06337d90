package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/retry"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// --- Mock implementations ---

// mockLoader implements driven.DocumentLoader.
type mockLoader struct {
	doc *domain.SourceDocument
	err error
}

func (m *mockLoader) Load(_ context.Context, source string) (*domain.SourceDocument, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.doc != nil {
		return m.doc, nil
	}
	return &domain.SourceDocument{Title: SourceName(source), URI: source, Text: "default text"}, nil
}

// mockChunker implements driven.Chunker.
type mockChunker struct {
	chunks []domain.Chunk
	err    error
}

func (m *mockChunker) Chunk(_ context.Context, _ string) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.chunks, nil
}

// mockEmbedder implements driven.EmbeddingService and counts calls so
// tests can assert the rerun short-circuit.
type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	err        error
	embedCalls int
	batchCalls int
}

func (m *mockEmbedder) vector() []float32 {
	v := make([]float32, m.Dimensions())
	for i := range v {
		v[i] = 0.1
	}
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.embedCalls += len(texts)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector()
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 4
}

func (m *mockEmbedder) ModelName() string { return "mock-embed" }

func (m *mockEmbedder) Ping(_ context.Context) error { return m.err }

func (m *mockEmbedder) Close() error { return nil }

func (m *mockEmbedder) totalEmbeds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// storedCollection backs mockStore.
type storedCollection struct {
	size    int
	records []domain.EmbeddingRecord
}

// mockStore implements driven.VectorStore over an in-memory map.
type mockStore struct {
	mu          sync.Mutex
	collections map[string]*storedCollection
	hits        []domain.ScoredChunk
	ensureErr   error
	upsertErr   error
	searchErr   error
	healthErr   error
	upserts     int
	searches    int
}

func newMockStore() *mockStore {
	return &mockStore{collections: map[string]*storedCollection{}}
}

// seed creates a collection holding n placeholder records.
func (m *mockStore) seed(name string, size, n int) {
	m.seedDoc(name, "doc-"+name, size, n)
}

// seedDoc creates a collection holding n records owned by docID.
func (m *mockStore) seedDoc(name, docID string, size, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &storedCollection{size: size}
	for i := 0; i < n; i++ {
		c.records = append(c.records, domain.EmbeddingRecord{
			Metadata: domain.DocumentMetadata{DocumentID: docID, ChunkIndex: i, Text: fmt.Sprintf("seed chunk %d", i)},
		})
	}
	m.collections[name] = c
}

func (m *mockStore) Owner(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok || len(c.records) == 0 {
		return "", nil
	}
	return c.records[0].Metadata.DocumentID, nil
}

func (m *mockStore) EnsureCollection(_ context.Context, name string, vectorSize int) (bool, error) {
	if m.ensureErr != nil {
		return false, m.ensureErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		if c.size != vectorSize {
			return false, fmt.Errorf("collection %s has vector size %d, want %d: %w",
				name, c.size, vectorSize, domain.ErrCollectionMismatch)
		}
		return false, nil
	}
	m.collections[name] = &storedCollection{size: vectorSize}
	return true, nil
}

func (m *mockStore) Populated(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	return ok && len(c.records) > 0, nil
}

func (m *mockStore) Upsert(_ context.Context, name string, records []domain.EmbeddingRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return domain.ErrNotFound
	}
	c.records = append(c.records, records...)
	m.upserts++
	return nil
}

func (m *mockStore) Search(_ context.Context, name string, _ []float32, limit int, _ *driven.SearchFilter) ([]domain.ScoredChunk, error) {
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.hits != nil {
		if limit > len(m.hits) {
			limit = len(m.hits)
		}
		return m.hits[:limit], nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.ScoredChunk, 0, limit)
	for i, r := range c.records {
		if i >= limit {
			break
		}
		out = append(out, domain.ScoredChunk{Metadata: r.Metadata, Score: 1 - float64(i)*0.05})
	}
	return out, nil
}

func (m *mockStore) HealthCheck(_ context.Context) error { return m.healthErr }

func (m *mockStore) Stats(_ context.Context, name string) (driven.CollectionStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return driven.CollectionStats{}, domain.ErrNotFound
	}
	return driven.CollectionStats{Count: len(c.records), Dimension: c.size}, nil
}

func (m *mockStore) Close() error { return nil }

func (m *mockStore) recordCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[name]
	if !ok {
		return 0
	}
	return len(c.records)
}

// mockLLM implements driven.LLMService. The hooks allow per-call
// behaviour; unset hooks fall back to canned values.
type mockLLM struct {
	mu           sync.Mutex
	proposal     domain.SkeletonProposal
	revision     domain.SkeletonRevision
	proposeErr   error
	reviseErr    error
	composeFn    func(section domain.Section, passages []domain.ScoredChunk) (string, error)
	reviseFn     func(current *domain.Skeleton, batchText string) (domain.SkeletonRevision, error)
	answerText   string
	pingErr      error
	proposeCalls int
	reviseCalls  int
	composeCalls int
}

func defaultProposal() domain.SkeletonProposal {
	return domain.SkeletonProposal{
		DocumentType:   "report",
		SuggestedTitle: "Test Document",
		Sections: []domain.SectionProposal{
			{Title: "Overview", Description: "What the document covers", Order: 1, SupportingChunkIndices: []int{0}},
		},
	}
}

func (m *mockLLM) ProposeSkeleton(_ context.Context, _ string) (domain.SkeletonProposal, error) {
	m.mu.Lock()
	m.proposeCalls++
	m.mu.Unlock()
	if m.proposeErr != nil {
		return domain.SkeletonProposal{}, m.proposeErr
	}
	if len(m.proposal.Sections) > 0 {
		return m.proposal, nil
	}
	return defaultProposal(), nil
}

func (m *mockLLM) ReviseSkeleton(_ context.Context, current *domain.Skeleton, batchText string) (domain.SkeletonRevision, error) {
	m.mu.Lock()
	m.reviseCalls++
	m.mu.Unlock()
	if m.reviseErr != nil {
		return domain.SkeletonRevision{}, m.reviseErr
	}
	if m.reviseFn != nil {
		return m.reviseFn(current, batchText)
	}
	return m.revision, nil
}

func (m *mockLLM) ComposeSection(_ context.Context, section domain.Section, passages []domain.ScoredChunk) (string, error) {
	m.mu.Lock()
	m.composeCalls++
	m.mu.Unlock()
	if m.composeFn != nil {
		return m.composeFn(section, passages)
	}
	return "prose for " + section.Title, nil
}

func (m *mockLLM) Answer(_ context.Context, question string, _ []domain.ScoredChunk) (string, error) {
	if m.answerText != "" {
		return m.answerText, nil
	}
	return "answer to " + question, nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }

func (m *mockLLM) Ping(_ context.Context) error { return m.pingErr }

func (m *mockLLM) Close() error { return nil }

// mockReranker implements driven.Reranker. Default passes candidates
// through truncated to topN.
type mockReranker struct {
	fn  func(query string, candidates []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error)
	err error
}

func (m *mockReranker) Rerank(_ context.Context, query string, candidates []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.fn != nil {
		return m.fn(query, candidates, topN)
	}
	if topN > len(candidates) {
		topN = len(candidates)
	}
	return candidates[:topN], nil
}

func (m *mockReranker) Name() string { return "mock-rerank" }

// --- Test helpers ---

// fastRetry keeps retry behaviour observable without slowing tests.
func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func mkChunk(index, chars int) domain.Chunk {
	return domain.Chunk{Text: strings.Repeat("x", chars), SequenceIndex: index, SourceOffset: -1}
}

func mkChunks(sizes ...int) []domain.Chunk {
	out := make([]domain.Chunk, len(sizes))
	for i, n := range sizes {
		out[i] = mkChunk(i, n)
	}
	return out
}

func sealedSkeleton(titles ...string) *domain.Skeleton {
	sk := domain.NewSkeleton("doc-1")
	p := domain.SkeletonProposal{SuggestedTitle: "Fixture"}
	for i, title := range titles {
		p.Sections = append(p.Sections, domain.SectionProposal{
			Title: title, Description: "about " + title, Order: i + 1, SupportingChunkIndices: []int{i},
		})
	}
	if _, err := sk.ApplyProposal(p, len(titles)+10); err != nil {
		panic(err)
	}
	sk.Seal()
	return sk
}

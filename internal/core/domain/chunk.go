package domain

import "unicode/utf8"

// Chunk is a semantically coherent span of document text, the atomic unit
// of embedding and retrieval. Chunks are immutable once produced.
type Chunk struct {
	// Text is the chunk content.
	Text string

	// SequenceIndex is the ordinal position within the document.
	// It defines document order for batching and citation.
	SequenceIndex int

	// SourceOffset is the rune offset of the chunk start within the
	// original document text. -1 when provenance is unknown.
	SourceOffset int
}

// CharLen returns the chunk length in characters (runes, not bytes).
// All character budgets in the pipeline are counted this way.
func (c Chunk) CharLen() int {
	return utf8.RuneCountInString(c.Text)
}

// DocumentMetadata travels with every stored vector and search result.
// Text is denormalised so retrieval can display content without a
// second lookup.
type DocumentMetadata struct {
	// DocumentID identifies the owning document.
	DocumentID string `json:"document_id"`

	// DocumentTitle is the human-readable document title.
	DocumentTitle string `json:"document_title"`

	// ChunkIndex is the chunk's SequenceIndex within the document.
	ChunkIndex int `json:"chunk_index"`

	// Text is the chunk content.
	Text string `json:"text"`
}

// EmbeddingRecord pairs a chunk's vector with its metadata for storage.
// The vector dimensionality must equal the collection's configured size;
// a mismatch is a configuration error, never retried.
type EmbeddingRecord struct {
	// Vector is the fixed-dimension embedding.
	Vector []float32

	// Metadata is stored alongside the vector.
	Metadata DocumentMetadata
}

// ScoredChunk is a retrieval or rerank result: chunk metadata plus a
// relevance score. Result lists are ordered by descending score with
// ties broken by ascending ChunkIndex.
type ScoredChunk struct {
	// Metadata identifies and carries the matched chunk.
	Metadata DocumentMetadata `json:"metadata"`

	// Score is the similarity or rerank relevance score.
	Score float64 `json:"score"`
}

// SourceDocument is the loader output handed to the pipeline: the raw
// text of one document plus identity for collection naming.
type SourceDocument struct {
	// Title is the human-readable document title, usually derived from
	// the file name.
	Title string

	// URI is the original location (file path, github://, gdrive://).
	URI string

	// Text is the full raw text content.
	Text string
}

package domain

// ProcessRequest describes one pipeline run.
type ProcessRequest struct {
	// Source is the document URI: a local path, github://owner/repo/path
	// or gdrive://fileID.
	Source string

	// Collection overrides the derived collection name when non-empty.
	Collection string

	// MaxChars is the batch character budget. Zero means the default.
	MaxChars int

	// TopK is the retrieval depth per section. Zero means the default.
	TopK int

	// ContextLimit is the number of passages kept after reranking.
	// Zero means the default.
	ContextLimit int
}

// ResumeRequest re-enters the skeleton loop after a failed run.
// The caller supplies the last-good skeleton and the batch index to
// continue from; chunking and batching are re-derived from the source.
type ResumeRequest struct {
	ProcessRequest

	// Skeleton is the last-good skeleton from the failed run.
	Skeleton *Skeleton

	// FromBatch is the first batch index still to apply.
	FromBatch int
}

// QueryRequest is an ad-hoc question against a processed collection.
type QueryRequest struct {
	// Collection names the vector collection, or Source derives it.
	Collection string
	Source     string

	// Question is the user's question.
	Question string

	// TopK is the retrieval depth. Zero means the default.
	TopK int
}

// Answer is the response to a QueryRequest.
type Answer struct {
	Question   string        `json:"question"`
	Text       string        `json:"answer"`
	Collection string        `json:"collection"`
	Passages   []ScoredChunk `json:"passages,omitempty"`
}

// ComponentHealth reports one collaborator's reachability.
type ComponentHealth struct {
	Component string `json:"component"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
}

// CollectionInfo describes a vector collection for inspection.
type CollectionInfo struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
	Populated bool   `json:"populated"`
}

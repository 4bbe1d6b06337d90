package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/services"
)

// ProcessInput is the input schema for the process_document tool.
type ProcessInput struct {
	Source     string `json:"source" jsonschema:"document source: a local path, github://owner/repo[/path][@ref], or gdrive://fileID"`
	Collection string `json:"collection,omitempty" jsonschema:"vector collection name (default derived from the source)"`
	MaxChars   int    `json:"max_chars,omitempty" jsonschema:"reasoning batch character budget"`
}

// ProcessOutput is the output schema for the process_document tool.
type ProcessOutput struct {
	Title          string   `json:"title"`
	Status         string   `json:"status"`
	Collection     string   `json:"collection"`
	Sections       []string `json:"sections"`
	FailedSections []string `json:"failed_sections,omitempty"`
	Markdown       string   `json:"markdown"`
}

// QueryInput is the input schema for the query_document tool.
type QueryInput struct {
	Collection string `json:"collection" jsonschema:"name of an indexed collection to query"`
	Question   string `json:"question" jsonschema:"the question to answer from the collection"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"number of passages retrieved for the answer"`
}

// QueryOutput is the output schema for the query_document tool.
type QueryOutput struct {
	Answer    string           `json:"answer"`
	Citations []CitationOutput `json:"citations,omitempty"`
}

// CitationOutput represents a passage the answer drew on.
type CitationOutput struct {
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet,omitempty"`
}

// StatusInput is the input schema for the collection_status tool.
type StatusInput struct {
	Collection string `json:"collection" jsonschema:"name of the collection to inspect"`
}

// StatusOutput is the output schema for the collection_status tool.
type StatusOutput struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
	Populated bool   `json:"populated"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "process_document",
		Description: "Run a document through the report pipeline and return the structured report",
	}, s.handleProcess)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "query_document",
		Description: "Answer a question from an indexed document collection",
	}, s.handleQuery)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "collection_status",
		Description: "Report vector count and dimension for a collection",
	}, s.handleStatus)
}

// handleProcess handles the process_document tool invocation.
func (s *Server) handleProcess(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ProcessInput,
) (*mcp.CallToolResult, ProcessOutput, error) {
	collection := input.Collection
	if collection == "" {
		collection = services.DeriveCollectionName(services.SourceName(input.Source))
	}

	report, err := s.ports.Pipeline.ProcessDocument(ctx, domain.ProcessRequest{
		Source:     input.Source,
		Collection: collection,
		MaxChars:   input.MaxChars,
	})
	if err != nil {
		return nil, ProcessOutput{}, err
	}

	sections := make([]string, len(report.Sections))
	for i := range report.Sections {
		sections[i] = report.Sections[i].Title
	}

	output := ProcessOutput{
		Title:          report.Title,
		Status:         string(report.Status),
		Collection:     collection,
		Sections:       sections,
		FailedSections: report.FailedSections,
		Markdown:       report.Markdown(),
	}

	return nil, output, nil
}

// handleQuery handles the query_document tool invocation.
func (s *Server) handleQuery(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QueryInput,
) (*mcp.CallToolResult, QueryOutput, error) {
	answer, err := s.ports.Query.Ask(ctx, domain.QueryRequest{
		Collection: input.Collection,
		Question:   input.Question,
		TopK:       input.TopK,
	})
	if err != nil {
		return nil, QueryOutput{}, err
	}

	output := QueryOutput{
		Answer:    answer.Text,
		Citations: make([]CitationOutput, len(answer.Passages)),
	}
	for i := range answer.Passages {
		output.Citations[i] = CitationOutput{
			ChunkIndex: answer.Passages[i].Metadata.ChunkIndex,
			Score:      answer.Passages[i].Score,
			Snippet:    answer.Passages[i].Metadata.Text,
		}
	}

	return nil, output, nil
}

// handleStatus handles the collection_status tool invocation.
func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if s.ports.Inspect == nil {
		return nil, StatusOutput{}, domain.ErrNotFound
	}

	info, err := s.ports.Inspect.CollectionStats(ctx, input.Collection)
	if err != nil {
		return nil, StatusOutput{}, err
	}

	output := StatusOutput{
		Name:      info.Name,
		Count:     info.Count,
		Dimension: info.Dimension,
		Populated: info.Populated,
	}

	return nil, output, nil
}

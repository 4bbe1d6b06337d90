package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for longdoc resources.
	uriScheme = "longdoc://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Template for collection statistics.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "collections/{collection}",
		Name:        "collection-status",
		Description: "Vector count and dimension of an indexed collection",
		MIMEType:    "application/json",
	}, s.handleCollectionResource)
}

// handleCollectionResource returns statistics for a specific collection.
func (s *Server) handleCollectionResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Inspect == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract the collection from a URI like longdoc://collections/{collection}
	collection := extractCollection(req.Params.URI)
	if collection == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	info, err := s.ports.Inspect.CollectionStats(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("inspecting collection: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling collection info: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractCollection extracts the collection name from a URI like
// longdoc://collections/{collection}.
func extractCollection(uri string) string {
	const prefix = uriScheme + "collections/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	return strings.TrimPrefix(uri, prefix)
}

// Package mcp provides an MCP (Model Context Protocol) server adapter for longdoc.
// It enables AI assistants like Claude to process documents and query indexed
// collections through the report pipeline.
package mcp

import "errors"

// ErrMissingPipelineService is returned when the pipeline service is not provided.
var ErrMissingPipelineService = errors.New("mcp: pipeline service is required")

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

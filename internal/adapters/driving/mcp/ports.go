package mcp

import (
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Pipeline runs documents through the report pipeline.
	Pipeline driving.PipelineService

	// Query answers questions against indexed collections.
	Query driving.QueryService

	// Inspect reports collection statistics.
	Inspect driving.InspectService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Pipeline == nil {
		return ErrMissingPipelineService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	// Inspect is optional, status requests degrade to not found
	return nil
}

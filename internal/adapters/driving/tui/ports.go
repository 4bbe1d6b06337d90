// Package tui implements the interactive query explorer: a single
// Bubble Tea model with a question input, a scrollable answer view,
// and a spinner while a query is in flight.
package tui

import (
	"errors"

	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driving"
)

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("tui: query service is required")

// Ports aggregates the driving port interfaces required by the TUI.
type Ports struct {
	// Query answers questions against the active collection.
	Query driving.QueryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}

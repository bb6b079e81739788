package mcp

import (
	"github.com/pagecraft/pagecraft/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Edit applies natural-language edits to worksheet units.
	Edit driving.EditService

	// Thumbnail serves cached unit previews.
	Thumbnail driving.ThumbnailService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Edit == nil {
		return ErrMissingEditService
	}
	// Thumbnail is optional; the tool is simply not registered
	return nil
}

// Package mcp provides an MCP (Model Context Protocol) server adapter for Pagecraft.
// It enables AI assistants to apply worksheet edits and render previews.
package mcp

import "errors"

// ErrMissingEditService is returned when the edit service is not provided.
var ErrMissingEditService = errors.New("mcp: edit service is required")

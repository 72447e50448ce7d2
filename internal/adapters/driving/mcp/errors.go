// Package mcp provides an MCP (Model Context Protocol) server adapter for
// ragops. It lets AI assistants retrieve and inspect indexed chunks.
package mcp

import "errors"

// ErrMissingPipelineService is returned when the pipeline service is not provided.
var ErrMissingPipelineService = errors.New("mcp: pipeline service is required")

// ErrMissingIndexService is returned when the index service is not provided.
var ErrMissingIndexService = errors.New("mcp: index service is required")

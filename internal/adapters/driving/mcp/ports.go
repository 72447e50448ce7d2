package mcp

import (
	"github.com/custodia-labs/ragops/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Pipeline answers retrieval queries.
	Pipeline driving.PipelineService

	// Index reads stored records.
	Index driving.IndexService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Pipeline == nil {
		return ErrMissingPipelineService
	}
	if p.Index == nil {
		return ErrMissingIndexService
	}
	return nil
}

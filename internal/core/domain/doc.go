// Package domain defines the core business entities for ragops.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: Loader output, text plus provenance metadata
//   - Chunk: A bounded slice of a document, the unit of embedding
//   - VectorRecord: What the vector index stores per chunk
//   - QueryMatch: One ranked hit returned by a similarity query
//   - RawDocument: Opaque bytes from a document source
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

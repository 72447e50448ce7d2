// Package sqlite provides a local, persistent driven.VectorIndex.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Records are stored one row per id with
// the embedding encoded as a little-endian float32 blob and metadata as JSON.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// The index_meta table records the dimensionality fixed by the first stored
// record; later writes and queries of another size are rejected.
//
// # Search
//
// Queries are brute force: every row passing the metadata filter is scored in Go
// and the nearest K are returned. Metadata filters are pushed into SQL through
// json_extract.
//
// # Data Location
//
// By default, the database is stored at ~/.ragops/index.db
package sqlite

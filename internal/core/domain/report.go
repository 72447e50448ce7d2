package domain

import "time"

// IngestReport summarises one ingestion run.
type IngestReport struct {
	// Documents is the number of documents chunked.
	Documents int

	// Chunks is the number of chunks produced.
	Chunks int

	// Stored is the number of records upserted into the index.
	Stored int

	// Sources lists the provenance of every ingested document.
	Sources []string

	// Duration is the wall time of the run.
	Duration time.Duration
}

// RetrieveRequest is a query by text or by embedding.
// Embedding takes precedence when both are set.
type RetrieveRequest struct {
	Text      string
	Embedding []float32
	K         int
	Filter    Filter
}

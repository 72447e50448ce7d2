package domain

import (
	"strconv"
	"unicode/utf8"
)

// Well-known metadata keys.
const (
	// MetaSource identifies the provenance of a document (e.g. gs://bucket/name).
	MetaSource = "source"

	// MetaSequenceIndex is the chunk's position within its document.
	MetaSequenceIndex = "sequence_index"

	// MetaTitle is an optional human-readable title.
	MetaTitle = "title"
)

// Document is a loaded text document tagged with its provenance.
// It is produced by the loader and treated as immutable afterwards.
type Document struct {
	// ID is an optional identifier assigned by the loader.
	ID string

	// Content is the full text content.
	Content string

	// Metadata contains string key-value pairs.
	// The "source" key is mandatory.
	Metadata map[string]string
}

// Source returns the document's provenance string.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Chunk is a bounded slice of a document's text.
// Adjacent chunks of the same document may share overlapping text.
type Chunk struct {
	// ID is the record identifier used when storing the chunk.
	ID string

	// Source is the provenance of the parent document.
	Source string

	// Content is the text of this chunk, overlap included.
	Content string

	// Index is the sequence_index: the ordinal position within the document.
	Index int

	// Offset is the character offset of Content within the document.
	Offset int

	// Overlap is the number of leading characters duplicated from the
	// previous chunk. Always 0 for the first chunk.
	Overlap int

	// Metadata is a copy of the document metadata plus sequence_index.
	Metadata map[string]string
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return utf8.RuneCountInString(c.Content)
}

// NewChunkMetadata copies document metadata and appends the sequence index.
func NewChunkMetadata(docMeta map[string]string, index int) map[string]string {
	meta := make(map[string]string, len(docMeta)+1)
	for k, v := range docMeta {
		meta[k] = v
	}
	meta[MetaSequenceIndex] = strconv.Itoa(index)
	return meta
}

// Reconstruct rebuilds document text from its chunks in sequence order
// by dropping each chunk's declared overlap.
func Reconstruct(chunks []Chunk) string {
	var buf []rune
	for i, c := range chunks {
		r := []rune(c.Content)
		if i > 0 && c.Overlap > 0 {
			if c.Overlap >= len(r) {
				continue
			}
			r = r[c.Overlap:]
		}
		buf = append(buf, r...)
	}
	return string(buf)
}

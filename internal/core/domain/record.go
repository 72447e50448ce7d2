package domain

// DefaultGetLimit is the page size of a get with neither ids nor filter.
const DefaultGetLimit = 10

// VectorRecord is the unit stored in a vector index.
type VectorRecord struct {
	// ID is unique within the index.
	ID string

	// Embedding is the vector for the document text.
	Embedding []float32

	// Document is the stored text.
	Document string

	// Metadata contains string key-value pairs.
	Metadata map[string]string
}

// RecordPatch is a partial VectorRecord used by update.
// Nil fields leave the stored value unchanged.
type RecordPatch struct {
	// Document replaces the stored text when non-nil.
	Document *string

	// Embedding replaces the stored vector when non-nil.
	// A changed Document without an Embedding is re-embedded.
	Embedding []float32

	// Metadata replaces the stored metadata when non-nil.
	Metadata map[string]string
}

// Filter is an equality match on metadata keys.
type Filter map[string]string

// Matches reports whether metadata satisfies every filter entry.
func (f Filter) Matches(meta map[string]string) bool {
	for k, v := range f {
		got, ok := meta[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// IncludeField names a field a read operation may populate.
type IncludeField string

// Available include fields.
const (
	IncludeEmbeddings IncludeField = "embeddings"
	IncludeDocuments  IncludeField = "documents"
	IncludeMetadatas  IncludeField = "metadatas"
)

// Include selects which record fields are populated. Empty means all.
type Include []IncludeField

// Has reports whether the field is selected.
func (in Include) Has(f IncludeField) bool {
	if len(in) == 0 {
		return true
	}
	for _, v := range in {
		if v == f {
			return true
		}
	}
	return false
}

// Strings returns the include set as strings, expanding the empty set.
func (in Include) Strings() []string {
	if len(in) == 0 {
		in = Include{IncludeEmbeddings, IncludeDocuments, IncludeMetadatas}
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

// Apply clears fields the include set does not select.
func (in Include) Apply(r VectorRecord) VectorRecord {
	if !in.Has(IncludeEmbeddings) {
		r.Embedding = nil
	}
	if !in.Has(IncludeDocuments) {
		r.Document = ""
	}
	if !in.Has(IncludeMetadatas) {
		r.Metadata = nil
	}
	return r
}

// GetRequest selects records by ids, filter or page.
type GetRequest struct {
	IDs     []string
	Filter  Filter
	Limit   int
	Offset  int
	Include Include
}

// QueryRequest is a nearest-neighbour search.
type QueryRequest struct {
	Embedding []float32
	K         int
	Filter    Filter
	Include   Include
}

// DeleteRequest selects records to delete by ids and/or filter.
type DeleteRequest struct {
	IDs    []string
	Filter Filter
}

// IsEmpty reports whether the request selects nothing.
func (r DeleteRequest) IsEmpty() bool {
	return len(r.IDs) == 0 && len(r.Filter) == 0
}

// QueryMatch is one ranked result of a similarity query.
type QueryMatch struct {
	ID        string
	Document  string
	Metadata  map[string]string
	Distance  float64
	Embedding []float32
}

// DistanceMetric identifies how an index compares vectors.
type DistanceMetric string

// Supported distance metrics.
const (
	// MetricCosine is 1 - cosine similarity.
	MetricCosine DistanceMetric = "cosine"

	// MetricEuclidean is the L2 distance.
	MetricEuclidean DistanceMetric = "euclidean"

	// MetricDot is the negated dot product.
	MetricDot DistanceMetric = "dot"
)

// IsValid returns true if the metric is recognised.
func (m DistanceMetric) IsValid() bool {
	switch m {
	case MetricCosine, MetricEuclidean, MetricDot:
		return true
	default:
		return false
	}
}

package worker

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// textKey is the metadata key under which the worker stores document text.
const textKey = "text"

// wireRecord accepts both the worker's native field names
// (values, score) and the column names used by the client (embedding,
// distance).
type wireRecord struct {
	ID        string         `json:"id"`
	Document  *string        `json:"document,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
	Values    []float32      `json:"values,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Distance  *float64       `json:"distance,omitempty"`
	Score     *float64       `json:"score,omitempty"`
}

// columnar is the parallel-array shape: ids, documents, metadatas,
// embeddings and distances indexed together.
type columnar struct {
	IDs        []string         `json:"ids"`
	Documents  []*string        `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings"`
	Distances  []float64        `json:"distances"`
}

func (w wireRecord) record() domain.VectorRecord {
	r := domain.VectorRecord{
		ID:        w.ID,
		Embedding: w.Embedding,
	}
	if r.Embedding == nil {
		r.Embedding = w.Values
	}
	r.Metadata, r.Document = splitMetadata(w.Metadata)
	if w.Document != nil {
		r.Document = *w.Document
	}
	return r
}

func (w wireRecord) match() domain.QueryMatch {
	r := w.record()
	m := domain.QueryMatch{
		ID:        r.ID,
		Document:  r.Document,
		Metadata:  r.Metadata,
		Embedding: r.Embedding,
	}
	switch {
	case w.Distance != nil:
		m.Distance = *w.Distance
	case w.Score != nil:
		m.Distance = 1 - *w.Score
	}
	return m
}

// splitMetadata converts metadata values to strings and lifts the stored
// text out of it.
func splitMetadata(raw map[string]any) (map[string]string, string) {
	if raw == nil {
		return nil, ""
	}
	var text string
	meta := make(map[string]string, len(raw))
	for k, v := range raw {
		s := stringify(v)
		if k == textKey {
			text = s
			continue
		}
		meta[k] = s
	}
	return meta, text
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// decodeRecords accepts a bare array, {records: [...]}, {vectors: [...]}
// or the columnar shape.
func decodeRecords(raw json.RawMessage) ([]domain.VectorRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var wire []wireRecord
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		return toRecords(wire), nil
	}

	var envelope struct {
		Records []wireRecord `json:"records"`
		Vectors []wireRecord `json:"vectors"`
		columnar
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	switch {
	case envelope.Records != nil:
		return toRecords(envelope.Records), nil
	case envelope.Vectors != nil:
		return toRecords(envelope.Vectors), nil
	case envelope.IDs != nil:
		return envelope.columnar.records()
	default:
		return nil, nil
	}
}

// decodeMatches accepts {matches: [...]}, a bare array, or the columnar
// shape with one nested list per query.
func decodeMatches(raw json.RawMessage) ([]domain.QueryMatch, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	if raw[0] == '[' {
		var wire []wireRecord
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		return toMatches(wire), nil
	}

	var envelope struct {
		Matches    []wireRecord       `json:"matches"`
		IDs        [][]string         `json:"ids"`
		Documents  [][]*string        `json:"documents"`
		Metadatas  [][]map[string]any `json:"metadatas"`
		Embeddings [][][]float32      `json:"embeddings"`
		Distances  [][]float64        `json:"distances"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	if envelope.Matches != nil || len(envelope.IDs) == 0 {
		return toMatches(envelope.Matches), nil
	}

	col := columnar{IDs: envelope.IDs[0]}
	if len(envelope.Documents) > 0 {
		col.Documents = envelope.Documents[0]
	}
	if len(envelope.Metadatas) > 0 {
		col.Metadatas = envelope.Metadatas[0]
	}
	if len(envelope.Embeddings) > 0 {
		col.Embeddings = envelope.Embeddings[0]
	}
	if len(envelope.Distances) > 0 {
		col.Distances = envelope.Distances[0]
	}
	records, err := col.records()
	if err != nil {
		return nil, err
	}
	matches := make([]domain.QueryMatch, len(records))
	for i, r := range records {
		matches[i] = domain.QueryMatch{
			ID:        r.ID,
			Document:  r.Document,
			Metadata:  r.Metadata,
			Embedding: r.Embedding,
		}
		if i < len(col.Distances) {
			matches[i].Distance = col.Distances[i]
		}
	}
	return matches, nil
}

func (c columnar) records() ([]domain.VectorRecord, error) {
	n := len(c.IDs)
	for name, l := range map[string]int{
		"documents":  len(c.Documents),
		"metadatas":  len(c.Metadatas),
		"embeddings": len(c.Embeddings),
		"distances":  len(c.Distances),
	} {
		if l != 0 && l != n {
			return nil, fmt.Errorf("%s has %d entries for %d ids", name, l, n)
		}
	}

	records := make([]domain.VectorRecord, n)
	for i, id := range c.IDs {
		w := wireRecord{ID: id}
		if i < len(c.Documents) {
			w.Document = c.Documents[i]
		}
		if i < len(c.Metadatas) {
			w.Metadata = c.Metadatas[i]
		}
		if i < len(c.Embeddings) {
			w.Embedding = c.Embeddings[i]
		}
		records[i] = w.record()
	}
	return records, nil
}

func toRecords(wire []wireRecord) []domain.VectorRecord {
	out := make([]domain.VectorRecord, len(wire))
	for i, w := range wire {
		out[i] = w.record()
	}
	return out
}

func toMatches(wire []wireRecord) []domain.QueryMatch {
	out := make([]domain.QueryMatch, len(wire))
	for i, w := range wire {
		out[i] = w.match()
	}
	return out
}

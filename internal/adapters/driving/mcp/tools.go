package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// defaultK is the number of matches returned when the caller sets none.
const defaultK = 5

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string            `json:"query" jsonschema:"the text to find similar chunks for"`
	K     int               `json:"k,omitempty" jsonschema:"maximum number of matches to return (default 5)"`
	Where map[string]string `json:"where,omitempty" jsonschema:"metadata fields every match must equal"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Matches []MatchOutput `json:"matches"`
	Count   int           `json:"count"`
}

// MatchOutput is a single retrieved chunk.
type MatchOutput struct {
	ID       string            `json:"id"`
	Distance float64           `json:"distance"`
	Source   string            `json:"source,omitempty"`
	Title    string            `json:"title,omitempty"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GetRecordsInput is the input schema for the get_records tool.
type GetRecordsInput struct {
	IDs    []string          `json:"ids,omitempty" jsonschema:"record ids to fetch"`
	Where  map[string]string `json:"where,omitempty" jsonschema:"metadata fields every record must equal"`
	Limit  int               `json:"limit,omitempty" jsonschema:"maximum number of records (default 10 without ids or filter)"`
	Offset int               `json:"offset,omitempty" jsonschema:"number of records to skip"`
}

// PeekInput is the input schema for the peek tool.
type PeekInput struct {
	N int `json:"n,omitempty" jsonschema:"number of records to sample (default 10)"`
}

// RecordsOutput is the output schema for tools returning records.
type RecordsOutput struct {
	Records []RecordOutput `json:"records"`
	Count   int            `json:"count"`
}

// RecordOutput is a stored chunk without its embedding.
type RecordOutput struct {
	ID       string            `json:"id"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CountOutput is the output schema for the count tool.
type CountOutput struct {
	Count int `json:"count"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Find the indexed chunks most similar to a query",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_records",
		Description: "Fetch stored chunks by id or metadata filter",
	}, s.handleGetRecords)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "peek",
		Description: "Sample the first stored chunks",
	}, s.handlePeek)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "count",
		Description: "Count the stored chunks",
	}, s.handleCount)
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultK
	}

	matches, err := s.ports.Pipeline.Retrieve(ctx, domain.RetrieveRequest{
		Text:   input.Query,
		K:      k,
		Filter: input.Where,
	})
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Matches: make([]MatchOutput, len(matches)),
		Count:   len(matches),
	}
	for i, m := range matches {
		output.Matches[i] = MatchOutput{
			ID:       m.ID,
			Distance: m.Distance,
			Source:   m.Metadata[domain.MetaSource],
			Title:    m.Metadata[domain.MetaTitle],
			Document: m.Document,
			Metadata: m.Metadata,
		}
	}
	return nil, output, nil
}

// handleGetRecords handles the get_records tool invocation.
func (s *Server) handleGetRecords(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetRecordsInput,
) (*mcp.CallToolResult, RecordsOutput, error) {
	records, err := s.ports.Index.Get(ctx, domain.GetRequest{
		IDs:     input.IDs,
		Filter:  input.Where,
		Limit:   input.Limit,
		Offset:  input.Offset,
		Include: domain.Include{domain.IncludeDocuments, domain.IncludeMetadatas},
	})
	if err != nil {
		return nil, RecordsOutput{}, err
	}
	return nil, toRecordsOutput(records), nil
}

// handlePeek handles the peek tool invocation.
func (s *Server) handlePeek(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input PeekInput,
) (*mcp.CallToolResult, RecordsOutput, error) {
	records, err := s.ports.Index.Peek(ctx, input.N)
	if err != nil {
		return nil, RecordsOutput{}, err
	}
	return nil, toRecordsOutput(records), nil
}

// handleCount handles the count tool invocation.
func (s *Server) handleCount(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, CountOutput, error) {
	n, err := s.ports.Index.Count(ctx)
	if err != nil {
		return nil, CountOutput{}, err
	}
	return nil, CountOutput{Count: n}, nil
}

func toRecordsOutput(records []domain.VectorRecord) RecordsOutput {
	out := RecordsOutput{
		Records: make([]RecordOutput, len(records)),
		Count:   len(records),
	}
	for i, r := range records {
		out.Records[i] = RecordOutput{ID: r.ID, Document: r.Document, Metadata: r.Metadata}
	}
	return out
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for ragops resources.
	uriScheme = "ragops://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource describing the index.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "index",
		Name:        "index",
		Description: "Size of the vector index",
		MIMEType:    "application/json",
	}, s.handleIndexResource)

	// Template for the chunks of one source document.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sources/{source}/records",
		Name:        "source-records",
		Description: "Chunks stored for a source document (source is URL-escaped)",
		MIMEType:    "application/json",
	}, s.handleSourceRecordsResource)

	// Template for record text.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "records/{id}",
		Name:        "record-document",
		Description: "Text of a stored chunk",
		MIMEType:    "text/plain",
	}, s.handleRecordResource)
}

// handleIndexResource returns the number of stored records.
func (s *Server) handleIndexResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	info := struct {
		Count *int `json:"count"`
	}{}

	n, err := s.ports.Index.Count(ctx)
	switch {
	case err == nil:
		info.Count = &n
	case errors.Is(err, domain.ErrUnsupportedOperation):
		// count stays null
	default:
		return nil, fmt.Errorf("counting records: %w", err)
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling index info: %w", err)
	}
	return jsonResult(req.Params.URI, data), nil
}

// handleSourceRecordsResource returns the chunks of one source.
func (s *Server) handleSourceRecordsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	source := extractSource(req.Params.URI)
	if source == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	records, err := s.ports.Index.Get(ctx, domain.GetRequest{
		Filter:  domain.Filter{domain.MetaSource: source},
		Include: domain.Include{domain.IncludeDocuments, domain.IncludeMetadatas},
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	data, err := json.MarshalIndent(toRecordsOutput(records), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling records: %w", err)
	}
	return jsonResult(req.Params.URI, data), nil
}

// handleRecordResource returns the text of a single record.
func (s *Server) handleRecordResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractRecordID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	records, err := s.ports.Index.Get(ctx, domain.GetRequest{
		IDs:     []string{id},
		Include: domain.Include{domain.IncludeDocuments},
	})
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	if len(records) == 0 {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     records[0].Document,
		}},
	}, nil
}

func jsonResult(uri string, data []byte) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}
}

// extractSource extracts the unescaped source from a URI like
// ragops://sources/{source}/records.
func extractSource(uri string) string {
	const prefix = uriScheme + "sources/"
	const suffix = "/records"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	escaped := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	source, err := url.PathUnescape(escaped)
	if err != nil {
		return ""
	}
	return source
}

// extractRecordID extracts the record ID from a URI like ragops://records/{id}.
func extractRecordID(uri string) string {
	const prefix = uriScheme + "records/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	return strings.TrimPrefix(uri, prefix)
}

// Package worker provides a driven.VectorIndex backed by the remote
// vector worker HTTP API.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/ragops/internal/core/domain"
	"github.com/custodia-labs/ragops/internal/core/ports/driven"
)

// Ensure Client implements the interfaces.
var (
	_ driven.VectorIndex = (*Client)(nil)
	_ driven.Updater     = (*Client)(nil)
	_ driven.Peeker      = (*Client)(nil)
)

// DefaultTimeout bounds every worker call.
const DefaultTimeout = 60 * time.Second

// Config holds configuration for the worker client.
type Config struct {
	// URL is the worker base URL (required).
	URL string

	// Token is the bearer token sent on every call (required).
	Token string

	// Timeout is the request timeout (default: 60s).
	Timeout time.Duration

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client talks to the vector worker.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewClient creates a worker client.
// Returns ErrInvalidConfiguration when the URL or token is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: worker url is required", domain.ErrInvalidConfiguration)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: worker token is required", domain.ErrInvalidConfiguration)
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: worker url: %v", domain.ErrInvalidConfiguration, err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		client:  client,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
	}, nil
}

type addRequest struct {
	IDs        []string            `json:"ids"`
	Documents  []string            `json:"documents"`
	Embeddings [][]float32         `json:"embeddings"`
	Metadatas  []map[string]string `json:"metadatas"`
}

type queryRequest struct {
	QueryEmbedding []float32         `json:"query_embedding"`
	NResults       int               `json:"n_results"`
	Filter         map[string]string `json:"filter,omitempty"`
	Include        []string          `json:"include,omitempty"`
	ReturnMetadata bool              `json:"return_metadata"`
	ReturnValues   bool              `json:"return_values"`
}

type getRequest struct {
	IDs     []string          `json:"ids,omitempty"`
	Where   map[string]string `json:"where,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Offset  int               `json:"offset,omitempty"`
	Include []string          `json:"include,omitempty"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

type mutationResponse struct {
	Success bool `json:"success"`
	Count   *int `json:"count,omitempty"`
	Deleted *int `json:"deleted,omitempty"`
	Updated *int `json:"updated,omitempty"`
}

// Upsert sends records to /update-vectors as parallel arrays. The
// worker's /add-vectors only inserts and keeps existing ids untouched.
func (c *Client) Upsert(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	return c.do(ctx, "upsert", http.MethodPut, "/update-vectors", newAddRequest(records), nil)
}

// Update sends complete records to /update-vectors.
func (c *Client) Update(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	return c.do(ctx, "update", http.MethodPut, "/update-vectors", newAddRequest(records), nil)
}

// Query searches /query and normalises the matches.
func (c *Client) Query(ctx context.Context, req domain.QueryRequest) ([]domain.QueryMatch, error) {
	body := queryRequest{
		QueryEmbedding: req.Embedding,
		NResults:       req.K,
		Filter:         req.Filter,
		Include:        req.Include.Strings(),
		ReturnMetadata: req.Include.Has(domain.IncludeMetadatas) || req.Include.Has(domain.IncludeDocuments),
		ReturnValues:   req.Include.Has(domain.IncludeEmbeddings),
	}

	var raw json.RawMessage
	if err := c.do(ctx, "query", http.MethodPost, "/query", body, &raw); err != nil {
		return nil, err
	}

	matches, err := decodeMatches(raw)
	if err != nil {
		return nil, fmt.Errorf("query: decode response: %w", err)
	}
	for i := range matches {
		r := req.Include.Apply(domain.VectorRecord{
			Document:  matches[i].Document,
			Metadata:  matches[i].Metadata,
			Embedding: matches[i].Embedding,
		})
		matches[i].Document, matches[i].Metadata, matches[i].Embedding = r.Document, r.Metadata, r.Embedding
	}
	return matches, nil
}

// Get fetches records by id from /get-vectors. The worker looks records
// up by id only, so a request without ids is rejected and a filter is
// applied locally to the fetched records.
func (c *Client) Get(ctx context.Context, req domain.GetRequest) ([]domain.VectorRecord, error) {
	if len(req.IDs) == 0 {
		return nil, fmt.Errorf("%w: worker index gets records by id only", domain.ErrUnsupportedOperation)
	}
	body := getRequest{
		IDs:     req.IDs,
		Where:   req.Filter,
		Limit:   req.Limit,
		Offset:  req.Offset,
		Include: req.Include.Strings(),
	}

	var raw json.RawMessage
	if err := c.do(ctx, "get", http.MethodPost, "/get-vectors", body, &raw); err != nil {
		return nil, err
	}

	records, err := decodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("get: decode response: %w", err)
	}

	out := records[:0]
	for _, r := range records {
		if req.Filter.Matches(r.Metadata) {
			out = append(out, req.Include.Apply(r))
		}
	}
	return out, nil
}

// Delete removes records through /delete, which accepts ids only.
// A filter narrows the given ids with a get first; a filter without ids
// cannot be resolved by the worker.
func (c *Client) Delete(ctx context.Context, req domain.DeleteRequest) (int, error) {
	if req.IsEmpty() {
		return 0, nil
	}
	if len(req.IDs) == 0 {
		return 0, fmt.Errorf("%w: worker index deletes by id only", domain.ErrUnsupportedOperation)
	}

	ids := req.IDs
	if len(req.Filter) > 0 {
		records, err := c.Get(ctx, domain.GetRequest{
			IDs:     req.IDs,
			Filter:  req.Filter,
			Include: domain.Include{domain.IncludeMetadatas},
		})
		if err != nil {
			return 0, err
		}
		ids = make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var resp mutationResponse
	if err := c.do(ctx, "delete", http.MethodDelete, "/delete", deleteRequest{IDs: ids}, &resp); err != nil {
		return 0, err
	}
	switch {
	case resp.Deleted != nil:
		return *resp.Deleted, nil
	case resp.Count != nil:
		return *resp.Count, nil
	default:
		return len(ids), nil
	}
}

// Peek samples up to n records from /peek.
func (c *Client) Peek(ctx context.Context, n int) ([]domain.VectorRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "peek", http.MethodGet, "/peek?n="+strconv.Itoa(n), nil, &raw); err != nil {
		return nil, err
	}
	records, err := decodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("peek: decode response: %w", err)
	}
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

// Close releases resources.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// do sends a JSON request and decodes a JSON response into out when
// non-nil. Any non-2xx status becomes a *domain.TransportError.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func newAddRequest(records []domain.VectorRecord) addRequest {
	req := addRequest{
		IDs:        make([]string, len(records)),
		Documents:  make([]string, len(records)),
		Embeddings: make([][]float32, len(records)),
		Metadatas:  make([]map[string]string, len(records)),
	}
	for i, r := range records {
		req.IDs[i] = r.ID
		req.Documents[i] = r.Document
		req.Embeddings[i] = r.Embedding
		req.Metadatas[i] = r.Metadata
		if req.Metadatas[i] == nil {
			req.Metadatas[i] = map[string]string{}
		}
	}
	return req
}

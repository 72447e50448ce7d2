// Package embedhttp is the request plumbing shared by hosted embedding
// providers that expose an OpenAI-style POST /embeddings endpoint with
// bearer authentication.
package embedhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/ragops/internal/core/domain"
)

// Client sends authorised JSON requests to one provider.
type Client struct {
	provider string
	baseURL  string
	apiKey   string
	http     *http.Client
}

// New creates a client. provider names the service in error messages.
func New(provider, baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		provider: provider,
		baseURL:  baseURL,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embeddings posts body to /embeddings and returns exactly n vectors in
// input order, placed by each item's index. Every failure wraps
// domain.ErrEmbeddingProvider.
func (c *Client) Embeddings(ctx context.Context, body any, n int) ([][]float32, error) {
	raw, err := c.send(ctx, http.MethodPost, "/embeddings", body)
	if err != nil {
		return nil, err
	}

	var resp embeddingsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, c.fail("decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, c.fail("%s", resp.Error.Message)
	}
	if len(resp.Data) != n {
		return nil, c.fail("returned %d embeddings for %d inputs", len(resp.Data), n)
	}

	out := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n || out[d.Index] != nil {
			return nil, c.fail("unexpected embedding index %d", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Check sends a GET to path and succeeds on 200.
func (c *Client) Check(ctx context.Context, path string) error {
	_, err := c.send(ctx, http.MethodGet, path, nil)
	return err
}

func (c *Client) send(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", c.provider, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.fail("status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

func (c *Client) fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrEmbeddingProvider, c.provider, fmt.Errorf(format, args...))
}

// Package http implements knowledge.Lookup against a remote HTTP search
// endpoint. The endpoint's embedding and ranking logic are out of scope;
// this client only speaks the wire contract (POST query, get back scored
// passages).
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xecure-ai/alex-sub000/internal/knowledge"
)

const defaultTimeout = 5 * time.Second

// Doer is the subset of *http.Client used by Client, satisfied by the
// standard library client or a test double.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures the HTTP-backed knowledge client.
type Options struct {
	// BaseURL is the search endpoint, e.g. "https://knowledge.internal/v1/search".
	BaseURL string
	// HTTPClient issues the request. Defaults to http.Client with Timeout.
	HTTPClient Doer
	// Timeout bounds each request when HTTPClient is left unset. Zero uses
	// defaultTimeout.
	Timeout time.Duration
	// APIKey, when set, is sent as a bearer token.
	APIKey string
}

// Client implements knowledge.Lookup over HTTP.
type Client struct {
	baseURL string
	http    Doer
	apiKey  string
}

// New builds a Client from opts.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: opts.BaseURL, http: httpClient, apiKey: opts.APIKey}, nil
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Results []knowledge.Result `json:"results"`
}

// Search implements knowledge.Lookup.
func (c *Client) Search(ctx context.Context, queryText string, k int) ([]knowledge.Result, error) {
	body, err := json.Marshal(searchRequest{Query: queryText, K: k})
	if err != nil {
		return nil, fmt.Errorf("knowledge: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("knowledge: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge: unexpected status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("knowledge: decode response: %w", err)
	}
	return out.Results, nil
}

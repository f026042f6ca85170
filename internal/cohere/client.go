// Package cohere provides a thin client for the Cohere rerank API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/ojas-care/ojas/internal/domain"
)

const (
	// DefaultBaseURL is the Cohere API root.
	DefaultBaseURL = "https://api.cohere.ai"
	// DefaultRerankModel is the cross-encoder used for both rerank stages.
	DefaultRerankModel = "rerank-english-v3.0"

	// maxDocuments is Cohere's per-request document limit.
	maxDocuments = 1000
)

// ErrNoAPIKey is returned when the client is constructed without a key.
var ErrNoAPIKey = errors.New("cohere API key not set")

// Client calls the Cohere v1/rerank endpoint. One Client is constructed
// at startup and shared; the underlying http.Client pools connections.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// Config holds the reranker configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates a rerank client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  cfg.HTTPClient,
	}, nil
}

// ModelName returns the configured rerank model.
func (c *Client) ModelName() string {
	return c.model
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores documents against the query and returns up to topN
// results ordered by descending relevance. Indexes refer to the
// submitted document slice.
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if len(documents) > maxDocuments {
		documents = documents[:maxDocuments]
	}

	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     c.model,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, domain.NewRerankError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewRerankError(fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, domain.NewRerankError(fmt.Errorf("rerank API returned status %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, domain.NewRerankError(fmt.Errorf("failed to parse response: %w", err))
	}

	results := make([]domain.RerankResult, len(parsed.Results))
	for i, r := range parsed.Results {
		results[i] = domain.RerankResult{Index: r.Index, Score: r.RelevanceScore}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

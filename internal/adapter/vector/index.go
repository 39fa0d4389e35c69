package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/vector"
)

// IndexClient is the managed index service backend: upserts and queries
// vectors over a JSON HTTP API with set-membership metadata filters.
type IndexClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewIndexClient creates a client for the managed index at endpoint.
// The timeout bounds each request; callers can impose tighter deadlines
// through ctx.
func NewIndexClient(endpoint, apiKey string, timeout time.Duration) *IndexClient {
	return &IndexClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type indexVector struct {
	ID       string        `json:"id"`
	Values   []float32     `json:"values"`
	Metadata indexMetadata `json:"metadata"`
}

type indexMetadata struct {
	SourceID    string   `json:"source_id"`
	Title       string   `json:"title"`
	Topics      []string `json:"topics"`
	PublishedAt string   `json:"published_at"`
}

type indexUpsertRequest struct {
	Vectors []indexVector `json:"vectors"`
}

type indexQueryRequest struct {
	Vector          []float32              `json:"vector"`
	TopK            int                    `json:"topK"`
	IncludeMetadata bool                   `json:"includeMetadata"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
}

type indexQueryResponse struct {
	Matches []struct {
		ID       string        `json:"id"`
		Score    float64       `json:"score"`
		Metadata indexMetadata `json:"metadata"`
	} `json:"matches"`
}

// Upsert replaces the vector and metadata stored under rec.ID.
func (c *IndexClient) Upsert(ctx context.Context, rec vector.Record) error {
	if len(rec.Embedding) != feed.EmbeddingDim {
		return fmt.Errorf("%w: record %s has %d dimensions, index expects %d",
			vector.ErrDimensionMismatch, rec.ID, len(rec.Embedding), feed.EmbeddingDim)
	}

	req := indexUpsertRequest{
		Vectors: []indexVector{{
			ID:     rec.ID,
			Values: rec.Embedding,
			Metadata: indexMetadata{
				SourceID:    rec.SourceID,
				Title:       rec.Title,
				Topics:      rec.Topics,
				PublishedAt: rec.PublishedAt.Format(time.RFC3339),
			},
		}},
	}

	return c.post(ctx, "/vectors/upsert", req, nil)
}

// Query returns the topK nearest vectors, optionally filtered to those
// whose topics intersect filterTopics via the service's $in operator.
func (c *IndexClient) Query(ctx context.Context, embedding []float32, topK int, filterTopics []string) ([]vector.Match, error) {
	if len(embedding) != feed.EmbeddingDim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index expects %d",
			vector.ErrDimensionMismatch, len(embedding), feed.EmbeddingDim)
	}

	req := indexQueryRequest{
		Vector:          embedding,
		TopK:            topK,
		IncludeMetadata: true,
	}
	if len(filterTopics) > 0 {
		req.Filter = map[string]interface{}{
			"topics": map[string]interface{}{"$in": filterTopics},
		}
	}

	var resp indexQueryResponse
	if err := c.post(ctx, "/query", req, &resp); err != nil {
		return nil, err
	}

	matches := make([]vector.Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, vector.Match{
			ID:       m.ID,
			Score:    m.Score,
			SourceID: m.Metadata.SourceID,
			Title:    m.Metadata.Title,
			Topics:   m.Metadata.Topics,
		})
	}
	return matches, nil
}

func (c *IndexClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling index request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error building index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Api-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", vector.ErrStoreUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", vector.ErrStoreUnavailable, path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("error decoding index response: %w", err)
		}
	}
	return nil
}

// Package inference provides HTTP adapters for the signal extraction
// ports, backed by an external model-serving service exposing one JSON
// endpoint per capability.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/signal"
)

const (
	// emotionCharBudget caps emotion classifier input; the backing model
	// has a fixed sequence budget, so longer text is truncated before
	// submission.
	emotionCharBudget = 512

	// embedCharBudget caps embedder input before encoding.
	embedCharBudget = 5000
)

// Client talks to the inference service. It implements all four signal
// ports; any transport failure, non-200 status, or empty input surfaces as
// signal.ErrExtractionUnavailable.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an inference client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type textRequest struct {
	Text string `json:"text"`
}

type sentimentResponse struct {
	Polarity feed.Polarity `json:"polarity"`
	Score    float64       `json:"score"`
}

type emotionsResponse struct {
	Scores map[feed.Emotion]float64 `json:"scores"`
}

type topicsResponse struct {
	Topics []string `json:"topics"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// ClassifySentiment maps text to a polarity and signed score.
func (c *Client) ClassifySentiment(ctx context.Context, text string) (feed.Polarity, float64, error) {
	if strings.TrimSpace(text) == "" {
		return "", 0, fmt.Errorf("%w: empty text", signal.ErrExtractionUnavailable)
	}

	var resp sentimentResponse
	if err := c.post(ctx, "/sentiment", text, &resp); err != nil {
		return "", 0, err
	}
	return resp.Polarity, resp.Score, nil
}

// ClassifyEmotions maps text to per-emotion scores, truncating input to
// the model's character budget first.
func (c *Client) ClassifyEmotions(ctx context.Context, text string) (map[feed.Emotion]float64, error) {
	var resp emotionsResponse
	if err := c.post(ctx, "/emotions", truncate(text, emotionCharBudget), &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

// ExtractTopics returns raw entity/topic tokens found in the text.
func (c *Client) ExtractTopics(ctx context.Context, text string) ([]string, error) {
	var resp topicsResponse
	if err := c.post(ctx, "/topics", text, &resp); err != nil {
		return nil, err
	}
	return resp.Topics, nil
}

// Embed encodes text into a fixed-length vector, truncating overly long
// input first. The caller validates the returned dimensionality.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embeddingResponse
	if err := c.post(ctx, "/embeddings", truncate(text, embedCharBudget), &resp); err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

func (c *Client) post(ctx context.Context, path, text string, out interface{}) error {
	payload, err := json.Marshal(textRequest{Text: text})
	if err != nil {
		return fmt.Errorf("error marshaling inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error building inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", signal.ErrExtractionUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", signal.ErrExtractionUnavailable, path, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decoding response: %v", signal.ErrExtractionUnavailable, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

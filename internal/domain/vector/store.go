package vector

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDimensionMismatch is returned when an embedding's length does not
	// match the store's configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStoreUnavailable is returned when the backend cannot be reached.
	// This layer does not retry; retry policy belongs to the caller.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Record is a document's embedding plus the metadata stored alongside it.
type Record struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	Title       string    `json:"title"`
	Topics      []string  `json:"topics"`
	Embedding   []float32 `json:"embedding"`
	PublishedAt time.Time `json:"published_at"`
}

// Match is one similarity query result. Score is cosine similarity in
// [-1,1], 1.0 meaning identical direction.
type Match struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	SourceID string   `json:"source_id"`
	Title    string   `json:"title"`
	Topics   []string `json:"topics"`
}

// Store persists document embeddings and answers nearest-neighbor queries.
// Implementations must behave identically from the caller's perspective
// regardless of backend.
type Store interface {
	// Upsert is idempotent by record ID: repeating an upsert with the same
	// ID replaces the prior vector and metadata entirely.
	Upsert(ctx context.Context, rec Record) error

	// Query returns up to topK records ordered by descending cosine
	// similarity to the given embedding. A non-empty filterTopics restricts
	// results to records whose topic set intersects it.
	Query(ctx context.Context, embedding []float32, topK int, filterTopics []string) ([]Match, error)
}

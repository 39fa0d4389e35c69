package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/vector"
)

// MemoryStore is an in-process vector store. It keeps the full record set
// in a map and brute-forces similarity queries, which is plenty for dev
// runs and the test suite.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]vector.Record
}

// NewMemoryStore creates an empty in-memory vector store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]vector.Record)}
}

// Upsert replaces any prior record stored under rec.ID.
func (s *MemoryStore) Upsert(_ context.Context, rec vector.Record) error {
	if len(rec.Embedding) != feed.EmbeddingDim {
		return fmt.Errorf("%w: record %s has %d dimensions, store expects %d",
			vector.ErrDimensionMismatch, rec.ID, len(rec.Embedding), feed.EmbeddingDim)
	}

	stored := rec
	stored.Embedding = append([]float32(nil), rec.Embedding...)
	stored.Topics = append([]string(nil), rec.Topics...)

	s.mu.Lock()
	s.records[rec.ID] = stored
	s.mu.Unlock()
	return nil
}

// Query scores every stored record by cosine similarity and returns the
// topK, ordered by score descending with id ascending as tie-break.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, topK int, filterTopics []string) ([]vector.Match, error) {
	if len(embedding) != feed.EmbeddingDim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store expects %d",
			vector.ErrDimensionMismatch, len(embedding), feed.EmbeddingDim)
	}

	s.mu.RLock()
	matches := make([]vector.Match, 0, len(s.records))
	for _, rec := range s.records {
		if len(filterTopics) > 0 && !topicsIntersect(rec.Topics, filterTopics) {
			continue
		}
		matches = append(matches, vector.Match{
			ID:       rec.ID,
			Score:    cosineSimilarity(embedding, rec.Embedding),
			SourceID: rec.SourceID,
			Title:    rec.Title,
			Topics:   append([]string(nil), rec.Topics...),
		})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func topicsIntersect(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// cosineSimilarity returns 1.0 for identical direction, 0.0 for orthogonal
// or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package vector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"mediapulse/internal/domain/feed"
	"mediapulse/internal/domain/vector"
)

// PgStore is the relational vector store backend: Postgres with the
// pgvector extension, a fixed-width vector column and a cosine similarity
// index.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a pgvector-backed store over an existing pool.
func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

// Migrate creates the extension, table and similarity index if missing.
func (s *PgStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS documents (
				id TEXT PRIMARY KEY,
				source_id TEXT NOT NULL,
				title TEXT,
				topics TEXT[] NOT NULL DEFAULT '{}',
				embedding vector(%d) NOT NULL,
				published_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, feed.EmbeddingDim),
		`CREATE INDEX IF NOT EXISTS documents_embedding_idx
			ON documents USING ivfflat (embedding vector_cosine_ops)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate: %v", vector.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Upsert stores the record, replacing any prior row with the same id.
func (s *PgStore) Upsert(ctx context.Context, rec vector.Record) error {
	if len(rec.Embedding) != feed.EmbeddingDim {
		return fmt.Errorf("%w: record %s has %d dimensions, store expects %d",
			vector.ErrDimensionMismatch, rec.ID, len(rec.Embedding), feed.EmbeddingDim)
	}

	query := `
		INSERT INTO documents (id, source_id, title, topics, embedding, published_at)
		VALUES ($1, $2, $3, $4, $5::vector, $6)
		ON CONFLICT (id) DO UPDATE
		SET
			source_id = $2,
			title = $3,
			topics = $4,
			embedding = $5::vector,
			published_at = $6
	`

	_, err := s.db.Exec(ctx, query,
		rec.ID,
		rec.SourceID,
		rec.Title,
		rec.Topics,
		encodeVector(rec.Embedding),
		rec.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", vector.ErrStoreUnavailable, rec.ID, err)
	}
	return nil
}

// Query returns the topK most similar records by cosine distance,
// optionally restricted to rows whose topics overlap filterTopics.
func (s *PgStore) Query(ctx context.Context, embedding []float32, topK int, filterTopics []string) ([]vector.Match, error) {
	if len(embedding) != feed.EmbeddingDim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, store expects %d",
			vector.ErrDimensionMismatch, len(embedding), feed.EmbeddingDim)
	}

	query := `
		SELECT
			id, source_id, title, topics,
			1 - (embedding <=> $1::vector) AS similarity
		FROM documents
	`
	args := []interface{}{encodeVector(embedding)}

	if len(filterTopics) > 0 {
		query += " WHERE topics && $2"
		args = append(args, filterTopics)
	}

	query += fmt.Sprintf(" ORDER BY embedding <=> $1::vector LIMIT %d", topK)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", vector.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var matches []vector.Match
	for rows.Next() {
		var m vector.Match
		if err := rows.Scan(&m.ID, &m.SourceID, &m.Title, &m.Topics, &m.Score); err != nil {
			return nil, fmt.Errorf("error scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query: %v", vector.ErrStoreUnavailable, err)
	}

	return matches, nil
}

// encodeVector renders an embedding in pgvector's text format: [x1,x2,...].
func encodeVector(embedding []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range embedding {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

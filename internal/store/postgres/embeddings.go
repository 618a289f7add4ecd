package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/picbest/picbest/internal/store"
)

func (s *Store) GetEmbedding(ctx context.Context, photoID int64) (*store.StoredEmbedding, error) {
	var emb store.StoredEmbedding
	var vec pgvector.Vector

	err := s.pool.QueryRow(ctx, `
		SELECT photo_id, embedding, model, dim, created_at
		FROM embeddings WHERE photo_id = $1`, photoID,
	).Scan(&emb.PhotoID, &vec, &emb.Model, &emb.Dim, &emb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	emb.Embedding = vec.Slice()
	return &emb, nil
}

func (s *Store) ListEmbeddings(ctx context.Context) ([]store.StoredEmbedding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT photo_id, embedding, model, dim, created_at
		FROM embeddings ORDER BY photo_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.StoredEmbedding
	for rows.Next() {
		var emb store.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&emb.PhotoID, &vec, &emb.Model, &emb.Dim, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		emb.Embedding = vec.Slice()
		out = append(out, emb)
	}
	return out, rows.Err()
}

func (s *Store) CountEmbeddings(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

func (s *Store) SaveEmbedding(ctx context.Context, emb store.StoredEmbedding) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO embeddings (photo_id, embedding, model, dim)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (photo_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			created_at = NOW()`,
		emb.PhotoID, pgvector.NewVector(emb.Embedding), emb.Model, emb.Dim)
	if err != nil {
		return fmt.Errorf("save embedding: %w", err)
	}
	return nil
}

// loadEmbeddingVectors reads all embedding vectors keyed by photo id inside
// the snapshot transaction.
func loadEmbeddingVectors(ctx context.Context, tx *sql.Tx) (map[int64][]float32, error) {
	rows, err := tx.QueryContext(ctx, "SELECT photo_id, embedding FROM embeddings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]float32)
	for rows.Next() {
		var photoID int64
		var vec pgvector.Vector
		if err := rows.Scan(&photoID, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding vector: %w", err)
		}
		out[photoID] = vec.Slice()
	}
	return out, rows.Err()
}

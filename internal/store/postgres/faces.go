package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/picbest/picbest/internal/store"
)

const selectFaceColumns = `
	SELECT id, photo_id, face_index, embedding, bbox, det_score, person_id, created_at`

func scanFaces(rows *sql.Rows, err error) ([]store.StoredFace, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faces []store.StoredFace
	for rows.Next() {
		var f store.StoredFace
		var vec pgvector.Vector
		var personID sql.NullInt64
		err := rows.Scan(&f.ID, &f.PhotoID, &f.FaceIndex, &vec,
			pq.Array(&f.BBox), &f.DetScore, &personID, &f.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.Embedding = vec.Slice()
		if personID.Valid {
			f.PersonID = &personID.Int64
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

func (s *Store) GetPhotoFaces(ctx context.Context, photoID int64) ([]store.StoredFace, error) {
	return scanFaces(s.pool.db.QueryContext(ctx,
		selectFaceColumns+" FROM faces WHERE photo_id = $1 ORDER BY face_index", photoID))
}

func (s *Store) ListFaces(ctx context.Context) ([]store.StoredFace, error) {
	return scanFaces(s.pool.db.QueryContext(ctx, selectFaceColumns+" FROM faces ORDER BY id"))
}

func (s *Store) CountFaces(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM faces").Scan(&count); err != nil {
		return 0, fmt.Errorf("count faces: %w", err)
	}
	return count, nil
}

// SaveFaces replaces all faces of one photo in a single transaction. Person
// assignments are recomputed on the next clustering run anyway, so the old
// rows carry nothing worth preserving.
func (s *Store) SaveFaces(ctx context.Context, photoID int64, faces []store.StoredFace) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM faces WHERE photo_id = $1", photoID); err != nil {
		return fmt.Errorf("delete old faces: %w", err)
	}

	for _, f := range faces {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO faces (photo_id, face_index, embedding, bbox, det_score)
			VALUES ($1, $2, $3, $4, $5)`,
			photoID, f.FaceIndex, pgvector.NewVector(f.Embedding),
			pq.Array(f.BBox), f.DetScore)
		if err != nil {
			return fmt.Errorf("insert face %d: %w", f.FaceIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit faces: %w", err)
	}
	return nil
}

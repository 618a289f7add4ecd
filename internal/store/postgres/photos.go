package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/picbest/picbest/internal/store"
)

const selectPhotoColumns = `
	SELECT id, filepath, filename, folder, file_hash, dhash, taken_at,
	       width, height, file_size, sharpness, rating, is_starred,
	       is_rejected, notes, cluster_id, duplicate_group_id,
	       is_cluster_representative, created_at, updated_at`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*store.Photo, error) {
	var p store.Photo
	var takenAt sql.NullTime
	var sharpness sql.NullFloat64
	var clusterID, dupGroupID sql.NullInt64

	err := row.Scan(
		&p.ID, &p.FilePath, &p.FileName, &p.Folder, &p.FileHash, &p.DHash,
		&takenAt, &p.Width, &p.Height, &p.FileSize, &sharpness, &p.Rating,
		&p.IsStarred, &p.IsRejected, &p.Notes, &clusterID, &dupGroupID,
		&p.IsClusterRepresentative, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if takenAt.Valid {
		p.TakenAt = &takenAt.Time
	}
	if sharpness.Valid {
		p.Sharpness = &sharpness.Float64
	}
	if clusterID.Valid {
		p.ClusterID = &clusterID.Int64
	}
	if dupGroupID.Valid {
		p.DuplicateGroupID = &dupGroupID.Int64
	}
	return &p, nil
}

func scanPhotos(rows *sql.Rows, err error) ([]store.Photo, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []store.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	return photos, rows.Err()
}

func (s *Store) GetPhoto(ctx context.Context, id int64) (*store.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx, selectPhotoColumns+" FROM photos WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query photo: %w", err)
	}
	return p, nil
}

func (s *Store) GetPhotoByPath(ctx context.Context, path string) (*store.Photo, error) {
	p, err := scanPhoto(s.pool.QueryRow(ctx, selectPhotoColumns+" FROM photos WHERE filepath = $1", path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query photo by path: %w", err)
	}
	return p, nil
}

func (s *Store) ListPhotos(ctx context.Context) ([]store.Photo, error) {
	return scanPhotos(s.pool.db.QueryContext(ctx, selectPhotoColumns+" FROM photos ORDER BY id"))
}

func (s *Store) ListClusterPhotos(ctx context.Context, clusterID int64) ([]store.Photo, error) {
	return scanPhotos(s.pool.db.QueryContext(ctx,
		selectPhotoColumns+" FROM photos WHERE cluster_id = $1 ORDER BY id", clusterID))
}

func (s *Store) ListStarredPhotos(ctx context.Context) ([]store.Photo, error) {
	return scanPhotos(s.pool.db.QueryContext(ctx,
		selectPhotoColumns+" FROM photos WHERE is_starred ORDER BY id"))
}

func (s *Store) CountPhotos(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM photos").Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// UpsertPhoto inserts the photo or, when the filepath already exists,
// refreshes its file and fingerprint columns. Curation and grouping state of
// an existing row is preserved; the photo's ID is filled in either way.
func (s *Store) UpsertPhoto(ctx context.Context, photo *store.Photo) error {
	query := `
		INSERT INTO photos (filepath, filename, folder, file_hash, dhash,
		                    taken_at, width, height, file_size, sharpness, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (filepath) DO UPDATE SET
			filename = EXCLUDED.filename,
			folder = EXCLUDED.folder,
			file_hash = EXCLUDED.file_hash,
			dhash = EXCLUDED.dhash,
			taken_at = EXCLUDED.taken_at,
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			file_size = EXCLUDED.file_size,
			sharpness = EXCLUDED.sharpness,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	var takenAt sql.NullTime
	if photo.TakenAt != nil {
		takenAt = sql.NullTime{Time: *photo.TakenAt, Valid: true}
	}
	var sharpness sql.NullFloat64
	if photo.Sharpness != nil {
		sharpness = sql.NullFloat64{Float64: *photo.Sharpness, Valid: true}
	}

	err := s.pool.QueryRow(ctx, query,
		photo.FilePath, photo.FileName, photo.Folder, photo.FileHash,
		photo.DHash, takenAt, photo.Width, photo.Height, photo.FileSize,
		sharpness, photo.Notes,
	).Scan(&photo.ID, &photo.CreatedAt, &photo.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert photo: %w", err)
	}
	return nil
}

func (s *Store) SetRating(ctx context.Context, id int64, rating int) error {
	return s.updatePhoto(ctx, id, "rating = $2", rating)
}

func (s *Store) SetStarred(ctx context.Context, id int64, starred bool) error {
	return s.updatePhoto(ctx, id, "is_starred = $2", starred)
}

func (s *Store) SetRejected(ctx context.Context, id int64, rejected bool) error {
	return s.updatePhoto(ctx, id, "is_rejected = $2", rejected)
}

func (s *Store) SetNotes(ctx context.Context, id int64, notes string) error {
	return s.updatePhoto(ctx, id, "notes = $2", notes)
}

func (s *Store) updatePhoto(ctx context.Context, id int64, set string, value any) error {
	result, err := s.pool.Exec(ctx,
		"UPDATE photos SET "+set+", updated_at = NOW() WHERE id = $1", id, value)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

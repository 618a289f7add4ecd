package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/picbest/picbest/internal/store"
)

func (s *Store) GetCluster(ctx context.Context, id int64) (*store.Cluster, error) {
	var c store.Cluster
	err := s.pool.QueryRow(ctx, `
		SELECT id, photo_count, representative_photo_id
		FROM clusters WHERE id = $1`, id,
	).Scan(&c.ID, &c.PhotoCount, &c.RepresentativePhotoID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cluster: %w", err)
	}
	return &c, nil
}

func (s *Store) ListClusters(ctx context.Context) ([]store.Cluster, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, photo_count, representative_photo_id
		FROM clusters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Cluster
	for rows.Next() {
		var c store.Cluster
		if err := rows.Scan(&c.ID, &c.PhotoCount, &c.RepresentativePhotoID); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetPerson(ctx context.Context, id int64) (*store.Person, error) {
	var p store.Person
	var name sql.NullString
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, photo_count, representative_face_id
		FROM persons WHERE id = $1`, id,
	).Scan(&p.ID, &name, &p.PhotoCount, &p.RepresentativeFaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	p.Name = name.String
	return &p, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]store.Person, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, photo_count, representative_face_id
		FROM persons ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Person
	for rows.Next() {
		var p store.Person
		var name sql.NullString
		if err := rows.Scan(&p.ID, &name, &p.PhotoCount, &p.RepresentativeFaceID); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.Name = name.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReplaceAssignment swaps the entire grouping assignment in one transaction.
// Either the complete new assignment lands, or the rollback leaves the
// previous one untouched.
func (s *Store) ReplaceAssignment(ctx context.Context, a *store.Assignment) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"UPDATE faces SET person_id = NULL",
		"UPDATE photos SET cluster_id = NULL, duplicate_group_id = NULL, is_cluster_representative = FALSE",
		"DELETE FROM clusters",
		"DELETE FROM persons",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear previous assignment: %w", err)
		}
	}

	for photoID, groupID := range a.DuplicateGroups {
		if _, err := tx.ExecContext(ctx,
			"UPDATE photos SET duplicate_group_id = $2 WHERE id = $1", photoID, groupID); err != nil {
			return fmt.Errorf("set duplicate group: %w", err)
		}
	}

	for _, c := range a.Clusters {
		var clusterID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO clusters (photo_count, representative_photo_id)
			VALUES ($1, $2) RETURNING id`,
			len(c.PhotoIDs), c.RepresentativePhotoID,
		).Scan(&clusterID)
		if err != nil {
			return fmt.Errorf("insert cluster: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE photos SET cluster_id = $1, is_cluster_representative = (id = $2)
			WHERE id = ANY($3)`,
			clusterID, c.RepresentativePhotoID, pq.Array(c.PhotoIDs))
		if err != nil {
			return fmt.Errorf("assign cluster members: %w", err)
		}
	}

	for _, p := range a.Persons {
		var personID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO persons (photo_count, representative_face_id)
			VALUES ($1, $2) RETURNING id`,
			len(p.PhotoIDs), p.RepresentativeFaceID,
		).Scan(&personID)
		if err != nil {
			return fmt.Errorf("insert person: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"UPDATE faces SET person_id = $1 WHERE id = ANY($2)",
			personID, pq.Array(p.FaceIDs)); err != nil {
			return fmt.Errorf("assign person faces: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment: %w", err)
	}
	return nil
}

func (s *Store) SetPersonName(ctx context.Context, id int64, name string) error {
	result, err := s.pool.Exec(ctx, "UPDATE persons SET name = $2 WHERE id = $1", id, name)
	if err != nil {
		return fmt.Errorf("set person name: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set person name: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

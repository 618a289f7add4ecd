package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/picbest/picbest/internal/store"
)

func (s *Store) CreateRun(ctx context.Context, run *store.Run) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO cluster_runs (id, status)
		VALUES ($1, $2) RETURNING started_at`,
		run.ID, run.Status,
	).Scan(&run.StartedAt)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

func (s *Store) UpdateRunProgress(ctx context.Context, id, phase string, current, total int, message string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE cluster_runs
		SET status = $2, phase = $3, current = $4, total = $5, message = $6
		WHERE id = $1`,
		id, store.RunRunning, phase, current, total, message)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return checkRunExists(result)
}

func (s *Store) FinishRun(ctx context.Context, id, status, errMsg string) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE cluster_runs
		SET status = $2, error = $3, completed_at = NOW()
		WHERE id = $1`,
		id, status, errMsg)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return checkRunExists(result)
}

func (s *Store) GetRun(ctx context.Context, id string) (*store.Run, error) {
	var run store.Run
	var completedAt sql.NullTime
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, phase, current, total, message, error, started_at, completed_at
		FROM cluster_runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.Status, &run.Phase, &run.Current, &run.Total,
		&run.Message, &run.Error, &run.StartedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

func checkRunExists(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check run update: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Package postgres is the PostgreSQL + pgvector backend of store.Store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/picbest/picbest/internal/config"
	"github.com/picbest/picbest/internal/store"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// QueryRow executes a query that returns a single row.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return p.db.QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return rows, nil
}

// Exec executes a query that doesn't return rows.
func (p *Pool) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	result, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing statement: %w", err)
	}
	return result, nil
}

// BeginTx starts a transaction.
func (p *Pool) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	tx, err := p.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return tx, nil
}

// Store implements store.Store on top of a Pool.
type Store struct {
	pool *Pool
}

// Open connects to PostgreSQL, applies pending migrations, and returns the
// ready-to-use store. embeddingDim sizes the image-embedding vector column
// and must match what the embedding sidecar produces.
func Open(cfg *config.DatabaseConfig, embeddingDim int) (*Store, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(context.Background(), embeddingDim); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewStore wraps an existing pool without running migrations. Integration
// tests use it against a container with migrations already applied.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Close implements store.Store.
func (s *Store) Close() error {
	return s.pool.Close()
}

// LoadSnapshot materializes the full clustering input inside one
// repeatable-read transaction, so a concurrent indexer cannot produce a torn
// view of photos versus embeddings.
func (s *Store) LoadSnapshot(ctx context.Context) (*store.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	photos, err := scanPhotos(tx.QueryContext(ctx, selectPhotoColumns+" FROM photos ORDER BY id"))
	if err != nil {
		return nil, fmt.Errorf("load photos: %w", err)
	}

	embeddings, err := loadEmbeddingVectors(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}

	faces, err := scanFaces(tx.QueryContext(ctx, selectFaceColumns+" FROM faces ORDER BY id"))
	if err != nil {
		return nil, fmt.Errorf("load faces: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot read: %w", err)
	}

	return &store.Snapshot{
		Photos:     photos,
		Embeddings: embeddings,
		Faces:      faces,
	}, nil
}

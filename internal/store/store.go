// Package store archives search runs and the grants they found in PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/internal/grants"
	"github.com/xkilldash9x/grantscout/internal/tasks"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is the PostgreSQL archive.
type Store struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

var _ tasks.Recorder = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
		now:  time.Now,
	}, nil
}

// Connect opens a pool for url and wraps it in a Store. The caller closes the returned pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS search_runs (
    id          TEXT PRIMARY KEY,
    prompt      TEXT NOT NULL,
    status      TEXT NOT NULL,
    error       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL,
    started_at  TIMESTAMPTZ,
    finished_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS grants (
    run_id     TEXT NOT NULL,
    position   INTEGER NOT NULL,
    grant_id   INTEGER NOT NULL,
    url        TEXT NOT NULL,
    funding    TEXT NOT NULL,
    deadline   TEXT NOT NULL,
    saved_at   TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (run_id, position)
);
`

// EnsureSchema creates the archive tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

const upsertRunSQL = `
INSERT INTO search_runs (id, prompt, status, error, created_at, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    status = EXCLUDED.status,
    error = EXCLUDED.error,
    started_at = EXCLUDED.started_at,
    finished_at = EXCLUDED.finished_at;
`

// RecordTask upserts the run row for t.
func (s *Store) RecordTask(ctx context.Context, t tasks.Task) error {
	_, err := s.pool.Exec(ctx, upsertRunSQL,
		t.ID, t.Prompt, string(t.Status), t.Error,
		t.CreatedAt.UTC(), nullTime(t.StartedAt), nullTime(t.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record task %s: %w", t.ID, err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

var grantColumns = []string{"run_id", "position", "grant_id", "url", "funding", "deadline", "saved_at"}

// SaveBatch replaces the grants stored for runID with b.
func (s *Store) SaveBatch(ctx context.Context, runID string, b grants.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM grants WHERE run_id = $1;`, runID); err != nil {
		return fmt.Errorf("failed to clear grants for run %s: %w", runID, err)
	}

	if b.Len() > 0 {
		savedAt := s.now().UTC()
		rows := make([][]any, len(b.Grants))
		for i, g := range b.Grants {
			rows[i] = []any{runID, i, g.ID, g.URL, g.Funding, g.Deadline, savedAt}
		}
		copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"grants"}, grantColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy grants: %w", err)
		}
		if int(copyCount) != len(rows) {
			return fmt.Errorf("mismatch in copied grants count: expected %d, got %d", len(rows), copyCount)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Archived grants", zap.String("run_id", runID), zap.Int("count", b.Len()))
	return nil
}

// ListGrants returns the grants saved for runID in their original order.
func (s *Store) ListGrants(ctx context.Context, runID string) (grants.Batch, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT grant_id, url, funding, deadline
        FROM grants
        WHERE run_id = $1
        ORDER BY position ASC;
    `, runID)
	if err != nil {
		return grants.Batch{}, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	b := grants.Batch{Grants: []grants.Record{}}
	for rows.Next() {
		var g grants.Record
		if err := rows.Scan(&g.ID, &g.URL, &g.Funding, &g.Deadline); err != nil {
			return grants.Batch{}, fmt.Errorf("failed to scan grant row: %w", err)
		}
		b.Grants = append(b.Grants, g)
	}
	if err := rows.Err(); err != nil {
		return grants.Batch{}, fmt.Errorf("error during row iteration: %w", err)
	}
	return b, nil
}

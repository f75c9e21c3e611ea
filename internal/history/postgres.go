package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is the slice of pgxpool.Pool the store needs; pgxmock
// satisfies it in tests.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgres connects to the given DSN and returns a repository.
func NewPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

// NewPostgresWithPool constructs a repository from an existing pool
// (primarily for testing).
func NewPostgresWithPool(pool pgxQuerier) (*PostgresRepository, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &PostgresRepository{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// StartRun inserts the run; replays of the same id are ignored.
func (r *PostgresRepository) StartRun(ctx context.Context, run Run) error {
	query := `
		INSERT INTO runs (id, started_at, status, workers, aggregate_count, aggregate_total)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID, run.StartedAt, RunRunning, run.Workers, run.AggregateCount, run.AggregateTotal)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordWorker upserts the worker's final result.
func (r *PostgresRepository) RecordWorker(ctx context.Context, res WorkerResult) error {
	query := `
		INSERT INTO run_workers (run_id, worker, count, length, canceled, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, worker) DO UPDATE
		SET count = EXCLUDED.count,
		    canceled = EXCLUDED.canceled,
		    finished_at = EXCLUDED.finished_at;
	`
	_, err := r.pool.Exec(ctx, query,
		res.RunID, res.Worker, res.Count, res.Length, res.Canceled, res.FinishedAt)
	if err != nil {
		return fmt.Errorf("upsert run worker: %w", err)
	}
	return nil
}

// CompleteRun stamps the run finished.
func (r *PostgresRepository) CompleteRun(
	ctx context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status RunStatus,
	aggregateCount int64,
) error {
	query := `
		UPDATE runs
		SET finished_at = $1, status = $2, aggregate_count = $3
		WHERE id = $4;
	`
	_, err := r.pool.Exec(ctx, query, finishedAt, status, aggregateCount, id)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a single run by its id.
func (r *PostgresRepository) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	query := `
		SELECT id, started_at, finished_at, status, workers, aggregate_count, aggregate_total
		FROM runs
		WHERE id = $1;
	`
	var run Run
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.Workers,
		&run.AggregateCount,
		&run.AggregateTotal,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrNotFound
		}
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves runs newest first, with optional status filtering.
func (r *PostgresRepository) ListRuns(
	ctx context.Context,
	status *RunStatus,
	limit,
	offset int,
) ([]Run, error) {
	query := `
		SELECT id, started_at, finished_at, status, workers, aggregate_count, aggregate_total
		FROM runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Status,
			&run.Workers,
			&run.AggregateCount,
			&run.AggregateTotal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// ListRunWorkers retrieves the stored worker results for a run.
func (r *PostgresRepository) ListRunWorkers(ctx context.Context, id uuid.UUID) ([]WorkerResult, error) {
	query := `
		SELECT run_id, worker, count, length, canceled, finished_at
		FROM run_workers
		WHERE run_id = $1
		ORDER BY worker;
	`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list run workers: %w", err)
	}
	defer rows.Close()

	var results []WorkerResult
	for rows.Next() {
		var res WorkerResult
		err := rows.Scan(
			&res.RunID,
			&res.Worker,
			&res.Count,
			&res.Length,
			&res.Canceled,
			&res.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run worker row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run worker rows: %w", err)
	}
	return results, nil
}

// Package history persists completed and in-flight run records so past
// progress survives the process. A Recorder bridges the coordinator's
// synchronous observer hook to a Repository without ever blocking the
// consumer goroutine.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound reports a run id with no stored record.
var ErrNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

// Supported run statuses.
const (
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunCanceled RunStatus = "canceled"
)

// Run is one coordinator run.
type Run struct {
	ID             uuid.UUID
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         RunStatus
	Workers        int
	AggregateCount int64
	AggregateTotal int64
}

// WorkerResult records one worker's final count within a run.
type WorkerResult struct {
	RunID      uuid.UUID
	Worker     int
	Count      int64
	Length     int64
	Canceled   bool
	FinishedAt time.Time
}

// Repository stores run history. Implementations must be safe for
// concurrent use.
type Repository interface {
	// StartRun inserts the run in the running state. Re-inserting the
	// same id is idempotent.
	StartRun(ctx context.Context, run Run) error
	// RecordWorker upserts a worker's final result.
	RecordWorker(ctx context.Context, res WorkerResult) error
	// CompleteRun stamps the run finished with its closing aggregate.
	CompleteRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, status RunStatus, aggregateCount int64) error
	// GetRun returns one run or ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	// ListRuns returns runs newest first, optionally filtered by status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
	// ListRunWorkers returns the stored worker results for a run.
	ListRunWorkers(ctx context.Context, id uuid.UUID) ([]WorkerResult, error)
}

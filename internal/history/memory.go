package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps run history in process memory. It backs tests
// and demo runs that have no database configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]Run
	workers map[uuid.UUID]map[int]WorkerResult
}

// NewMemory returns an empty in-memory repository.
func NewMemory() *MemoryRepository {
	return &MemoryRepository{
		runs:    make(map[uuid.UUID]Run),
		workers: make(map[uuid.UUID]map[int]WorkerResult),
	}
}

// StartRun inserts the run unless it already exists.
func (m *MemoryRepository) StartRun(_ context.Context, run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; ok {
		return nil
	}
	run.Status = RunRunning
	m.runs[run.ID] = run
	return nil
}

// RecordWorker upserts the worker's final result.
func (m *MemoryRepository) RecordWorker(_ context.Context, res WorkerResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byWorker := m.workers[res.RunID]
	if byWorker == nil {
		byWorker = make(map[int]WorkerResult)
		m.workers[res.RunID] = byWorker
	}
	byWorker[res.Worker] = res
	return nil
}

// CompleteRun stamps the run finished.
func (m *MemoryRepository) CompleteRun(
	_ context.Context,
	id uuid.UUID,
	finishedAt time.Time,
	status RunStatus,
	aggregateCount int64,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return ErrNotFound
	}
	run.FinishedAt = &finishedAt
	run.Status = status
	run.AggregateCount = aggregateCount
	m.runs[id] = run
	return nil
}

// GetRun returns one run or ErrNotFound.
func (m *MemoryRepository) GetRun(_ context.Context, id uuid.UUID) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first with optional status filtering.
func (m *MemoryRepository) ListRuns(_ context.Context, status *RunStatus, limit, offset int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]Run, 0, len(m.runs))
	for _, run := range m.runs {
		if status != nil && run.Status != *status {
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if offset >= len(runs) {
		return nil, nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

// ListRunWorkers returns the stored worker results ordered by index.
func (m *MemoryRepository) ListRunWorkers(_ context.Context, id uuid.UUID) ([]WorkerResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byWorker := m.workers[id]
	results := make([]WorkerResult, 0, len(byWorker))
	for _, res := range byWorker {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Worker < results[j].Worker
	})
	return results, nil
}

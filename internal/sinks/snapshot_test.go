package sinks

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/multibar"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func TestSnapshotTracksRunState(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	snap := NewSnapshot(clock)

	_, ok := snap.Run()
	require.False(t, ok, "no run observed yet")

	runID := uuid.New()
	snap.Observe(multibar.Event{
		RunID: runID, Worker: 1, Op: multibar.OpNext,
		Count: 1, Length: 4, Offset: 1, AggregateCount: 1, AggregateTotal: 6,
	})
	clock.now = clock.now.Add(time.Second)
	snap.Observe(multibar.Event{
		RunID: runID, Worker: 0, Op: multibar.OpNext,
		Count: 1, Length: 2, Offset: 2, AggregateCount: 2, AggregateTotal: 6,
	})

	run, ok := snap.Run()
	require.True(t, ok)
	require.Equal(t, runID, run.RunID)
	require.Equal(t, int64(2), run.AggregateCount)
	require.Equal(t, 2, run.ActiveWorkers)
	require.False(t, run.Done)
	require.Equal(t, time.Second, run.UpdatedAt.Sub(run.StartedAt))

	workers := snap.Workers()
	require.Len(t, workers, 2)
	require.Equal(t, 0, workers[0].Worker, "workers should come back ordered by index")
	require.Equal(t, 1, workers[1].Worker)
}

func TestSnapshotMarksCompletions(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot(&fakeClock{now: time.Now()})
	runID := uuid.New()

	snap.Observe(multibar.Event{
		RunID: runID, Worker: 0, Op: multibar.OpCancel, WorkerDone: true,
		Count: 1, Length: 3, AggregateCount: 1, AggregateTotal: 3,
	})
	workers := snap.Workers()
	require.Len(t, workers, 1)
	require.True(t, workers[0].Done)
	require.True(t, workers[0].Canceled)

	snap.Observe(multibar.Event{
		RunID: runID, Worker: -1, RunDone: true,
		AggregateCount: 1, AggregateTotal: 3,
	})
	run, ok := snap.Run()
	require.True(t, ok)
	require.True(t, run.Done)
	require.Zero(t, run.ActiveWorkers)
}

func TestSnapshotResetsOnNewRun(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot(&fakeClock{now: time.Now()})
	first := uuid.New()
	second := uuid.New()

	snap.Observe(multibar.Event{RunID: first, Worker: 0, Op: multibar.OpNext, Count: 1, Length: 2, AggregateCount: 1, AggregateTotal: 2})
	snap.Observe(multibar.Event{RunID: second, Worker: 0, Op: multibar.OpNext, Count: 1, Length: 5, AggregateCount: 1, AggregateTotal: 5})

	run, ok := snap.Run()
	require.True(t, ok)
	require.Equal(t, second, run.RunID)
	require.Equal(t, int64(5), run.AggregateTotal)
	require.Len(t, snap.Workers(), 1)
}

package multibar

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestAggregateMatchesWorkerSum drives three concurrent workers to
// completion and checks the aggregate bar saw every step exactly once.
func TestAggregateMatchesWorkerSum(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	lengths := []int64{5, 3, 4}
	m, handles, err := NewMulti(lengths, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i, n := range lengths {
		wg.Add(1)
		go func(h *Handle, n int64) {
			defer wg.Done()
			for j := int64(0); j < n; j++ {
				h.Next()
			}
		}(handles[i], n)
	}
	wg.Wait()
	require.NoError(t, m.Wait(testCtx(t)))

	final, ok := rec.Final()
	require.True(t, ok, "expected a run-level completion event")
	require.Equal(t, int64(12), final.AggregateCount)
	require.Equal(t, int64(12), final.AggregateTotal)
	for i := range lengths {
		events := rec.Worker(i)
		require.NotEmpty(t, events)
		require.True(t, events[len(events)-1].WorkerDone, "worker %d should finish", i)
	}
}

// TestOffsetReuseSequential retires one worker before the next appears,
// so both get the lowest line.
func TestOffsetReuseSequential(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{3, 2}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		handles[0].Next()
	}
	require.Eventually(t, func() bool {
		events := rec.Worker(0)
		return len(events) > 0 && events[len(events)-1].WorkerDone
	}, time.Second, 10*time.Millisecond)

	handles[1].Next()
	handles[1].Next()
	require.NoError(t, m.Wait(testCtx(t)))

	require.Equal(t, 1, rec.Worker(0)[0].Offset)
	require.Equal(t, 1, rec.Worker(1)[0].Offset, "freed line should be reused")
}

// TestOffsetsDistinctWhenInterleaved keeps both workers live at once, so
// the second one grows the display to line 2.
func TestOffsetsDistinctWhenInterleaved(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{3, 2}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	handles[0].Next()
	require.Eventually(t, func() bool {
		return len(rec.Worker(0)) > 0
	}, time.Second, 10*time.Millisecond)

	handles[1].Next()
	require.Eventually(t, func() bool {
		return len(rec.Worker(1)) > 0
	}, time.Second, 10*time.Millisecond)

	handles[0].Finish()
	handles[1].Finish()
	require.NoError(t, m.Wait(testCtx(t)))

	require.Equal(t, 1, rec.Worker(0)[0].Offset)
	require.Equal(t, 2, rec.Worker(1)[0].Offset)
}

// TestFinishIdempotent checks repeated finishes leave no trace beyond
// the first one.
func TestFinishIdempotent(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{2, 2}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	handles[0].Finish()
	require.Eventually(t, func() bool {
		events := rec.Worker(0)
		return len(events) > 0 && events[len(events)-1].WorkerDone
	}, time.Second, 10*time.Millisecond)

	handles[0].Finish()
	handles[0].Next()
	handles[1].Finish()
	require.NoError(t, m.Wait(testCtx(t)))

	require.Len(t, rec.Worker(0), 1, "updates after finish must be ignored")
	final, ok := rec.Final()
	require.True(t, ok)
	require.Equal(t, int64(4), final.AggregateCount)
}

func TestSetClampsAboveLength(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{10}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	handles[0].Set(25)
	require.NoError(t, m.Wait(testCtx(t)))

	events := rec.Worker(0)
	require.Len(t, events, 1)
	require.Equal(t, int64(10), events[0].Count)
	require.True(t, events[0].WorkerDone)
	final, ok := rec.Final()
	require.True(t, ok)
	require.Equal(t, int64(10), final.AggregateCount)
}

func TestSetClampsBelowZero(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{10, 1}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	handles[0].Set(-5)
	require.Eventually(t, func() bool {
		return len(rec.Worker(0)) > 0
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, int64(0), rec.Worker(0)[0].Count)

	handles[0].Finish()
	handles[1].Finish()
	require.NoError(t, m.Wait(testCtx(t)))
}

// TestCancelOneWorker cancels the middle worker mid-run: its line is
// released, the rest complete, and the aggregate keeps only applied
// steps.
func TestCancelOneWorker(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{2, 3, 1}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	handles[0].Next()
	handles[0].Next()
	handles[1].Next()
	handles[1].Cancel()
	handles[2].Next()
	require.NoError(t, m.Wait(testCtx(t)))

	w1 := rec.Worker(1)
	last := w1[len(w1)-1]
	require.Equal(t, OpCancel, last.Op)
	require.True(t, last.WorkerDone)
	require.Equal(t, int64(1), last.Count, "cancel keeps the applied count")
	require.Equal(t, 0, last.Offset, "canceled worker releases its line")

	final, ok := rec.Final()
	require.True(t, ok)
	require.Equal(t, int64(4), final.AggregateCount)
	require.Equal(t, int64(6), final.AggregateTotal)
}

// TestCancelRun broadcasts a cancel to every worker and verifies the
// run terminates and later sends become no-ops.
func TestCancelRun(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{4, 4}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	handles[0].Next()
	require.Eventually(t, func() bool {
		return len(rec.Worker(0)) > 0
	}, time.Second, 10*time.Millisecond)

	m.Cancel()
	require.NoError(t, m.Wait(testCtx(t)))

	require.Len(t, rec.Events(), 4) // one next, two cancels, one final
	final, ok := rec.Final()
	require.True(t, ok)
	require.Equal(t, int64(1), final.AggregateCount)

	handles[1].Next()
	m.Cancel()
	time.Sleep(50 * time.Millisecond)
	require.Len(t, rec.Events(), 4, "updates after termination must be ignored")
}

func TestZeroLengthWorkerFinishesAtConstruction(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{0, 2}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	handles[1].Next()
	handles[1].Next()
	require.NoError(t, m.Wait(testCtx(t)))

	require.Empty(t, rec.Worker(0), "zero-length worker never produces events")
	require.Equal(t, 1, rec.Worker(1)[0].Offset, "line 1 should be free for the live worker")
	final, ok := rec.Final()
	require.True(t, ok)
	require.Equal(t, int64(2), final.AggregateTotal)
}

func TestEmptyRunTerminatesImmediately(t *testing.T) {
	t.Parallel()

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{0, 0}, Config{Observers: []Observer{rec}})
	require.NoError(t, err)

	require.NoError(t, m.Wait(testCtx(t)))
	require.Len(t, rec.Events(), 1)
	final, ok := rec.Final()
	require.True(t, ok)
	require.Equal(t, int64(0), final.AggregateTotal)

	handles[0].Next()
	time.Sleep(20 * time.Millisecond)
	require.Len(t, rec.Events(), 1)
}

func TestNewMultiValidation(t *testing.T) {
	t.Parallel()

	_, _, err := NewMulti([]int64{3, -1}, Config{})
	require.ErrorContains(t, err, "negative length")

	_, _, err = NewMulti([]int64{3, 3}, Config{PerWorker: []Options{{}}})
	require.ErrorContains(t, err, "per-worker options")

	_, _, err = NewMultiUniform(-1, 5, Config{})
	require.ErrorContains(t, err, "negative worker count")
}

// TestOutOfRangeWorkerPanics covers the in-process contract: addressing
// a worker the run does not have is a caller bug.
func TestOutOfRangeWorkerPanics(t *testing.T) {
	t.Parallel()

	m, handles, err := NewMulti([]int64{1}, Config{})
	require.NoError(t, err)
	handles[0].Next()
	require.NoError(t, m.Wait(testCtx(t)))

	require.Panics(t, func() {
		m.apply(Update{Worker: 5, Op: OpNext})
	})
}

// TestPerWorkerOptionsMerge verifies shared options flow to every bar
// with per-worker and aggregate fields layered on top.
func TestPerWorkerOptionsMerge(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	byOffset := map[int]Options{}
	factory := func(total int64, offset int, opts Options) Tracker {
		mu.Lock()
		byOffset[offset] = opts
		mu.Unlock()
		return NewCounter(total, offset)
	}

	rec := &recordingObserver{}
	m, handles, err := NewMulti([]int64{2, 2}, Config{
		Factory:   factory,
		Options:   Options{Description: "step", Color: "\x1b[36m"},
		PerWorker: []Options{{}, {Description: "special"}},
		Aggregate: Options{Description: "all"},
		Observers: []Observer{rec},
	})
	require.NoError(t, err)

	handles[0].Next()
	require.Eventually(t, func() bool {
		return len(rec.Worker(0)) > 0
	}, time.Second, 10*time.Millisecond)
	handles[1].Next()
	handles[0].Finish()
	handles[1].Finish()
	require.NoError(t, m.Wait(testCtx(t)))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "all", byOffset[0].Description)
	require.Equal(t, "step", byOffset[1].Description)
	require.Equal(t, "special", byOffset[2].Description)
	require.Equal(t, "\x1b[36m", byOffset[2].Color, "shared color reaches overridden workers")
}

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Observe(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingObserver) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recordingObserver) Worker(i int) []Event {
	var out []Event
	for _, evt := range r.Events() {
		if evt.Worker == i {
			out = append(out, evt)
		}
	}
	return out
}

func (r *recordingObserver) Final() (Event, bool) {
	for _, evt := range r.Events() {
		if evt.RunDone {
			return evt, true
		}
	}
	return Event{}, false
}

package demo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JakeFAU/multibar"
)

func TestNewRunnerValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(Config{Workers: 0, StepsMin: 1, StepsMax: 2}, nil)
	require.Error(t, err)

	_, err = NewRunner(Config{Workers: 1, StepsMin: 5, StepsMax: 2}, nil)
	require.Error(t, err)
}

func TestRunnerLengthsWithinBounds(t *testing.T) {
	t.Parallel()

	runner, err := NewRunner(Config{Workers: 8, StepsMin: 3, StepsMax: 9, CancelWorker: -1}, nil)
	require.NoError(t, err)

	lengths := runner.Lengths()
	require.Len(t, lengths, 8)
	for _, n := range lengths {
		require.GreaterOrEqual(t, n, int64(3))
		require.LessOrEqual(t, n, int64(9))
	}
	require.Equal(t, lengths, runner.Lengths())
}

func TestRunnerDrivesRunToCompletion(t *testing.T) {
	t.Parallel()

	runner, err := NewRunner(Config{
		Workers:      3,
		StepsMin:     4,
		StepsMax:     7,
		CancelWorker: -1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		last multibar.Event
	)
	m, handles, err := multibar.NewMulti(runner.Lengths(), multibar.Config{
		Observers: []multibar.Observer{multibar.ObserverFunc(func(evt multibar.Event) {
			if evt.RunDone {
				mu.Lock()
				last = evt
				mu.Unlock()
			}
		})},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.Run(ctx, Local(handles)))
	require.NoError(t, m.Wait(ctx))

	var total int64
	for _, n := range runner.Lengths() {
		total += n
	}
	mu.Lock()
	defer mu.Unlock()
	require.True(t, last.RunDone)
	require.Equal(t, total, last.AggregateCount)
	require.Equal(t, total, last.AggregateTotal)
}

func TestRunnerCancelsDesignatedWorker(t *testing.T) {
	t.Parallel()

	runner, err := NewRunner(Config{
		Workers:      2,
		StepsMin:     6,
		StepsMax:     6,
		CancelWorker: 1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	var (
		mu       mutexEvents
		canceled bool
	)
	m, handles, err := multibar.NewMulti(runner.Lengths(), multibar.Config{
		Observers: []multibar.Observer{multibar.ObserverFunc(func(evt multibar.Event) {
			mu.add(evt)
		})},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, runner.Run(ctx, Local(handles)))
	require.NoError(t, m.Wait(ctx))

	for _, evt := range mu.events() {
		if evt.Worker == 1 && evt.WorkerDone && evt.Op == multibar.OpCancel {
			canceled = true
			require.Equal(t, int64(3), evt.Count)
		}
	}
	require.True(t, canceled, "worker 1 should have reported a cancel")
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	runner, err := NewRunner(Config{
		Workers:      2,
		StepsMin:     1000,
		StepsMax:     1000,
		StepDelay:    10 * time.Millisecond,
		CancelWorker: -1,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, handles, err := multibar.NewMulti(runner.Lengths(), multibar.Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.Run(ctx, Local(handles))
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after context cancel")
	}
}

type mutexEvents struct {
	mu     sync.Mutex
	stored []multibar.Event
}

func (m *mutexEvents) add(evt multibar.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, evt)
}

func (m *mutexEvents) events() []multibar.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]multibar.Event(nil), m.stored...)
}

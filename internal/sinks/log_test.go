package sinks

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/multibar"
)

func TestLogObserverLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLog(zap.New(core))
	runID := uuid.New()

	sink.Observe(multibar.Event{RunID: runID, Worker: 0, Op: multibar.OpNext, Count: 1, Length: 3})
	sink.Observe(multibar.Event{RunID: runID, Worker: 0, Op: multibar.OpFinish, Count: 3, Length: 3, WorkerDone: true})
	sink.Observe(multibar.Event{RunID: runID, Worker: -1, RunDone: true, AggregateCount: 3, AggregateTotal: 3})

	require.Equal(t, 1, logs.FilterMessage("progress update").Len())
	require.Equal(t, 1, logs.FilterMessage("worker complete").Len())
	require.Equal(t, 1, logs.FilterMessage("run complete").Len())
}

func TestLogObserverNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLog(nil)
	require.NotPanics(t, func() {
		sink.Observe(multibar.Event{RunID: uuid.New(), Worker: 0, Op: multibar.OpNext})
	})
}

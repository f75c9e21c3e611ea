package sinks

import (
	"go.uber.org/zap"

	"github.com/JakeFAU/multibar"
)

// Log emits structured logs for debugging progress streams. Per-step
// events log at debug; worker and run completions log at info so a
// production profile still records lifecycle milestones.
type Log struct {
	logger *zap.Logger
}

// NewLog wires a zap logger to the observer interface.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Observe logs the event using structured fields.
func (l *Log) Observe(evt multibar.Event) {
	if evt.RunDone {
		l.logger.Info("run complete",
			zap.Stringer("run_id", evt.RunID),
			zap.Int64("aggregate_count", evt.AggregateCount),
			zap.Int64("aggregate_total", evt.AggregateTotal),
		)
		return
	}
	fields := []zap.Field{
		zap.Stringer("run_id", evt.RunID),
		zap.Int("worker", evt.Worker),
		zap.Stringer("op", evt.Op),
		zap.Int64("count", evt.Count),
		zap.Int64("length", evt.Length),
		zap.Int64("aggregate_count", evt.AggregateCount),
		zap.Int64("aggregate_total", evt.AggregateTotal),
	}
	if evt.WorkerDone {
		l.logger.Info("worker complete", fields...)
		return
	}
	l.logger.Debug("progress update", fields...)
}

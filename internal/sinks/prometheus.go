package sinks

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/multibar"
)

// Prometheus exports progress metrics. It owns all collectors for
// update throughput, live worker count, completions, and the aggregate
// completion ratio.
type Prometheus struct {
	updates          *prometheus.CounterVec
	workersActive    prometheus.Gauge
	workersCompleted *prometheus.CounterVec
	aggregateRatio   prometheus.Gauge

	tracker *workerTracker
}

// NewPrometheus registers the collectors against the provided registry.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multibar_updates_total",
			Help: "Applied progress updates partitioned by operation.",
		}, []string{"op"}),
		workersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multibar_workers_active",
			Help: "Workers currently holding a display line.",
		}),
		workersCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "multibar_workers_completed_total",
			Help: "Workers retired partitioned by result.",
		}, []string{"result"}),
		aggregateRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "multibar_aggregate_ratio",
			Help: "Aggregate progress as a fraction of the run total.",
		}),
		tracker: newWorkerTracker(),
	}
	for _, collector := range []prometheus.Collector{
		p.updates,
		p.workersActive,
		p.workersCompleted,
		p.aggregateRatio,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return p, nil
}

// Observe updates the collectors for one event. It is safe for
// concurrent use by multiple goroutines.
func (p *Prometheus) Observe(evt multibar.Event) {
	if evt.AggregateTotal > 0 {
		p.aggregateRatio.Set(float64(evt.AggregateCount) / float64(evt.AggregateTotal))
	}
	if evt.RunDone {
		return
	}
	p.updates.WithLabelValues(evt.Op.String()).Inc()
	if !evt.WorkerDone {
		if p.tracker.start(evt.RunID, evt.Worker) {
			p.workersActive.Inc()
		}
		return
	}
	result := "finished"
	if evt.Op == multibar.OpCancel {
		result = "canceled"
	}
	p.workersCompleted.WithLabelValues(result).Inc()
	if p.tracker.complete(evt.RunID, evt.Worker) {
		p.workersActive.Dec()
	}
}

// workerTracker dedupes active-gauge moves: a worker increments the
// gauge only on its first event and decrements only once at retirement.
type workerTracker struct {
	mu     sync.Mutex
	active map[workerKey]struct{}
}

type workerKey struct {
	run    uuid.UUID
	worker int
}

func newWorkerTracker() *workerTracker {
	return &workerTracker{active: make(map[workerKey]struct{})}
}

func (t *workerTracker) start(run uuid.UUID, worker int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := workerKey{run: run, worker: worker}
	if _, ok := t.active[key]; ok {
		return false
	}
	t.active[key] = struct{}{}
	return true
}

func (t *workerTracker) complete(run uuid.UUID, worker int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := workerKey{run: run, worker: worker}
	if _, ok := t.active[key]; !ok {
		return false
	}
	delete(t.active, key)
	return true
}

// Package rtmetrics exports the runtime's Prometheus instrumentation.
//
// Mirrors the shape of the teacher's internal/concurrent.ConcurrentStatistics:
// one struct of pre-registered collectors, handed to every subsystem at
// construction time so call sites do Inc()/Set()/Observe() instead of
// touching the Prometheus client directly.
package rtmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Runtime holds every collector the runtime's subsystems report through.
type Runtime struct {
	TasksSpawned   *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksPanicked  prometheus.Counter
	TasksAborted   prometheus.Counter

	WorkerLocalQueueDepth  *prometheus.GaugeVec
	WorkerSharedQueueDepth *prometheus.GaugeVec
	WorkerPollBudgetUsed   *prometheus.HistogramVec

	ReactorEventsDispatched prometheus.Counter
	ReactorRegisteredFDs    prometheus.Gauge

	BlockingWorkersAlive   prometheus.Gauge
	BlockingWorkersCreated prometheus.Counter
	BlockingWorkersKilled  prometheus.Counter
	BlockingTasksPanic     prometheus.Counter
	BlockingTasksWaitTime  prometheus.Histogram
}

// NewRuntime constructs and registers (against reg, or a fresh private
// registry when reg is nil) every collector used by the runtime.
func NewRuntime(reg prometheus.Registerer) *Runtime {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Runtime{
		TasksSpawned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskrt", Name: "tasks_spawned_total", Help: "tasks spawned, by kind",
		}, []string{"kind"}),
		TasksCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskrt", Name: "tasks_completed_total", Help: "tasks completed, by outcome",
		}, []string{"outcome"}),
		TasksPanicked: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskrt", Name: "tasks_panicked_total", Help: "tasks whose future unwound",
		}),
		TasksAborted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskrt", Name: "tasks_aborted_total", Help: "tasks cancelled via abort()",
		}),
		WorkerLocalQueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "taskrt", Name: "worker_local_queue_depth", Help: "tasks on a worker's local deque",
		}, []string{"worker"}),
		WorkerSharedQueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "taskrt", Name: "worker_shared_queue_depth", Help: "tasks pending in a worker's shared queue",
		}, []string{"worker"}),
		WorkerPollBudgetUsed: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "taskrt", Name: "worker_poll_budget_used", Help: "tasks polled per event loop iteration",
			Buckets: prometheus.LinearBuckets(0, 8, 8),
		}, []string{"worker"}),
		ReactorEventsDispatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskrt", Name: "reactor_events_dispatched_total", Help: "readiness events dispatched to wakers",
		}),
		ReactorRegisteredFDs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskrt", Name: "reactor_registered_fds", Help: "sources currently registered with the poller",
		}),
		BlockingWorkersAlive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskrt", Name: "blocking_workers_alive", Help: "live blocking-pool OS threads",
		}),
		BlockingWorkersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskrt", Name: "blocking_workers_created_total", Help: "blocking-pool threads spawned",
		}),
		BlockingWorkersKilled: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskrt", Name: "blocking_workers_killed_total", Help: "blocking-pool threads retired on idle timeout",
		}),
		BlockingTasksPanic: f.NewCounter(prometheus.CounterOpts{
			Namespace: "taskrt", Name: "blocking_tasks_panic_total", Help: "blocking jobs whose function panicked",
		}),
		BlockingTasksWaitTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taskrt", Name: "blocking_tasks_wait_seconds", Help: "time a blocking job waited for a worker",
		}),
	}
}

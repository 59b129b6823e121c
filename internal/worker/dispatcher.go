package worker

import (
	"github.com/taskrt/taskrt/internal/rtmetrics"
	"github.com/taskrt/taskrt/internal/task"
)

// Dispatcher holds every worker in the runtime and implements task
// admission per spec.md §4.3: least-loaded selection for Sendable
// tasks, direct placement for Pinned tasks, and the pinned same-thread
// fast path.
type Dispatcher struct {
	workers []*Worker
	metrics *rtmetrics.Runtime
}

// NewDispatcher wraps an already-constructed slice of workers. The
// caller is responsible for starting each worker's Run loop.
func NewDispatcher(workers []*Worker, m *rtmetrics.Runtime) *Dispatcher {
	return &Dispatcher{workers: workers, metrics: m}
}

// Workers returns the underlying worker slice, in index order.
func (d *Dispatcher) Workers() []*Worker { return d.workers }

// Len reports how many workers the dispatcher manages.
func (d *Dispatcher) Len() int { return len(d.workers) }

// LeastLoaded implements spec.md §4.3's "min-by-key that returns the
// first minimum": a linear scan of every worker's counter snapshot,
// ties broken by lowest index, so behavior is deterministic under
// equal load.
func (d *Dispatcher) LeastLoaded() *Worker {
	best := d.workers[0]
	bestTotal := best.Snapshot().Total()
	for _, w := range d.workers[1:] {
		total := w.Snapshot().Total()
		if total < bestTotal {
			best, bestTotal = w, total
		}
	}
	return best
}

// SubmitSendable places h on the least-loaded worker's shared queue. A
// Sendable task always goes through Schedule, even when the least-loaded
// worker happens to be the caller's own.
func (d *Dispatcher) SubmitSendable(h *task.Header) {
	d.LeastLoaded().Schedule(h)
}

// SubmitPinned places h on the worker named by h.PinnedWorker(). If
// currentWorker is that same worker, h is pushed directly onto its
// local deque (spec.md §4.3's same-thread fast path); otherwise it goes
// through the ordinary cross-thread Schedule path.
func (d *Dispatcher) SubmitPinned(h *task.Header, currentWorker *Worker) {
	target := d.workers[h.PinnedWorker()]
	if currentWorker != nil && currentWorker == target {
		currentWorker.PushLocal(h)
		return
	}
	target.Schedule(h)
}

// SubmitLocal places h directly on currentWorker's local deque; used
// for tasks spawned from within a running task on that worker.
func (d *Dispatcher) SubmitLocal(h *task.Header, currentWorker *Worker) {
	currentWorker.PushLocal(h)
}

// Stop stops every worker and waits for each loop to exit.
func (d *Dispatcher) Stop() {
	for _, w := range d.workers {
		w.Stop()
	}
}

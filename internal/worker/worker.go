package worker

import (
	"time"

	"github.com/taskrt/taskrt/internal/reactor"
	"github.com/taskrt/taskrt/internal/rtlog"
	"github.com/taskrt/taskrt/internal/rtmetrics"
	"github.com/taskrt/taskrt/internal/task"
	"github.com/taskrt/taskrt/internal/timer"
)

// DefaultExecuteBudget bounds how many local-deque tasks a worker polls
// per loop iteration before re-checking timers and the poller, so one
// burst of ready work can't starve timer/I-O fairness indefinitely
// (spec.md §4.2 step 1, "budget = configured event interval").
const DefaultExecuteBudget = 61

// Worker runs the event loop described in spec.md §4.2: an execute
// budget over its local deque, a timer sweep, a sleep/poll decision,
// and readiness-event dispatch, repeated until Stop is called.
type Worker struct {
	id      int
	budget  int
	local   *localQueue
	shared  *sharedQueue
	counter Counter
	timers  *timer.Store
	react   *reactor.Reactor

	stopCh chan struct{}
	doneCh chan struct{}

	log     rtlog.Logger
	metrics *rtmetrics.Runtime
}

// New constructs a worker. react may be nil (the worker then never
// observes I/O readiness; when idle it sleeps until its next timer
// deadline, or does not block at all if no timer is armed), used by
// tests and platforms without a Reactor implementation.
func New(id int, budget int, react *reactor.Reactor, m *rtmetrics.Runtime) *Worker {
	if budget <= 0 {
		budget = DefaultExecuteBudget
	}
	return &Worker{
		id:      id,
		budget:  budget,
		local:   newLocalQueue(256),
		shared:  newSharedQueue(),
		timers:  timer.New(),
		react:   react,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		log:     rtlog.GetLogger("Worker", itoa(id)),
		metrics: m,
	}
}

// ID returns the worker's index within its runtime.
func (w *Worker) ID() int { return w.id }

// Timers exposes the worker's timer store to code running on this
// worker; the loop fires its due entries and bounds its poller wait by
// the earliest one. The public Sleep future does not arm entries here.
// Calling this from any other goroutine is a violation of the
// single-owner contract in spec.md §5.
func (w *Worker) Timers() *timer.Store { return w.timers }

// Reactor exposes the worker's reactor, or nil if none was configured.
func (w *Worker) Reactor() *reactor.Reactor { return w.react }

// Snapshot reports the current load counter, used by the dispatcher's
// least-loaded scan.
func (w *Worker) Snapshot() Snapshot { return w.counter.Load() }

// PushLocal enqueues h directly onto this worker's local deque; valid
// only when called from the worker's own goroutine (a pinned fast path
// or a local spawn).
func (w *Worker) PushLocal(h *task.Header) {
	w.local.PushBack(h)
	w.counter.IncreaseLocal()
	if w.metrics != nil {
		w.metrics.WorkerLocalQueueDepth.WithLabelValues(itoa(w.id)).Set(float64(w.local.Len()))
	}
}

// Schedule implements task.Scheduler: any thread may call this to push
// h onto the worker's shared queue, waking the poller if the worker was
// parked and not already notified.
func (w *Worker) Schedule(h *task.Header) {
	w.shared.Push(h)
	shouldWake := w.counter.IncreaseShared()
	if w.metrics != nil {
		w.metrics.WorkerSharedQueueDepth.WithLabelValues(itoa(w.id)).Set(float64(w.counter.Load().Shared))
	}
	if shouldWake && w.react != nil {
		if err := w.react.WakeUp(); err != nil {
			w.log.Warn("failed to wake parked worker", rtlog.Err(err))
		}
	}
}

// Run executes the event loop until Stop is called. Intended to run on
// its own OS thread (the caller should runtime.LockOSThread first).
func (w *Worker) Run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.tick()
	}
}

// Stop requests the loop exit after its current iteration and blocks
// until it has.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) tick() {
	w.executeBudget()
	w.advanceTimers(time.Now())
	w.sleepOrPoll()
}

// executeBudget implements spec.md §4.2 step 1.
func (w *Worker) executeBudget() {
	polled := 0
	for polled < w.budget {
		h, ok := w.local.PopFront()
		if !ok {
			break
		}
		polled++
		status := h.PollOn(w.id)
		switch status {
		case task.StatusYielded:
			w.local.PushBack(h)
		case task.StatusComplete:
			w.retireLocal()
		case task.StatusPending:
			w.retireLocal()
		}
	}
	if w.metrics != nil {
		w.metrics.WorkerPollBudgetUsed.WithLabelValues(itoa(w.id)).Observe(float64(polled))
		w.metrics.WorkerLocalQueueDepth.WithLabelValues(itoa(w.id)).Set(float64(w.local.Len()))
	}
}

// retireLocal decrements local_count after a task leaves the local
// deque without being re-queued (completed, or parked awaiting a
// waker), then folds any observed shared work into local — spec.md
// §4.2 step 1's "using that observation, fold any pending shared_count
// into local".
func (w *Worker) retireLocal() {
	snap := w.counter.DecreaseLocal()
	if snap.Shared > 0 {
		w.foldShared(snap.Shared)
	}
}

func (w *Worker) foldShared(n uint32) {
	tasks := w.shared.PopN(int(n))
	for _, h := range tasks {
		w.local.PushBack(h)
	}
	w.counter.MoveSharedToLocal(uint32(len(tasks)))
}

// advanceTimers implements spec.md §4.2 step 2.
func (w *Worker) advanceTimers(now time.Time) {
	w.timers.Fetch(now)
}

// sleepOrPoll implements spec.md §4.2 step 3/4.
func (w *Worker) sleepOrPoll() {
	if !w.local.IsEmpty() {
		w.pollReactor(0)
		return
	}
	for {
		cleared, snap := w.counter.AcceptNotifyOnceIfSharedEmpty()
		if cleared {
			timeout := w.timers.NextTimeout(time.Now())
			w.pollReactor(timeout)
			return
		}
		if snap.Shared > 0 {
			w.foldShared(snap.Shared)
			return
		}
	}
}

func (w *Worker) pollReactor(timeout time.Duration) {
	if w.react == nil {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return
	}
	if err := w.react.Poll(timeout); err != nil {
		// Poll already retries EINTR internally (see reactor_linux.go);
		// anything it returns is fatal per spec.md §7.
		w.log.Fatal("poller returned a fatal error, terminating", rtlog.Err(err))
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

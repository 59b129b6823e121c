package task

import (
	"fmt"

	"github.com/taskrt/taskrt/internal/rtlog"
)

var log = rtlog.GetLogger("Task", "state-machine")

// Scheduler is the capability a Header uses to re-enqueue itself. It is
// a small interface rather than a per-task allocation of a closure:
// schedulers are shared handles (the *worker.Worker the task was placed
// on), so spawning a task never allocates a fresh scheduler.
type Scheduler interface {
	// Schedule re-enqueues the task named by h. Called exactly when a
	// Sleep->Notified or an Abort-while-Sleep transition succeeds.
	Schedule(h *Header)
}

// Kind distinguishes the two kinds of cooperatively scheduled task.
// Blocking jobs run on the blocking pool and carry no Kind.
type Kind int

const (
	// Sendable tasks may migrate between worker threads.
	Sendable Kind = iota
	// Pinned tasks must run on one specific worker.
	Pinned
)

// JoinErrorKind enumerates why a JoinHandle's output never arrived.
type JoinErrorKind int

const (
	JoinCancelled JoinErrorKind = iota
	JoinPanic
)

// JoinError is returned from a JoinHandle when the task did not produce
// a value: it was aborted, or its future (or drop) unwound.
type JoinError struct {
	Kind  JoinErrorKind
	Panic any
}

func (e *JoinError) Error() string {
	switch e.Kind {
	case JoinCancelled:
		return "task was cancelled"
	case JoinPanic:
		return fmt.Sprintf("task panicked: %v", e.Panic)
	default:
		return "task did not complete"
	}
}

// Status is what a single Poll call tells the worker loop to do next.
type Status int

const (
	// StatusPending: the future returned Pending and no wake raced it;
	// the task is now parked (Sleep) until its waker fires.
	StatusPending Status = iota
	// StatusYielded: the future returned Pending but was woken during
	// the poll; the worker must push it to the back of its local deque.
	StatusYielded
	// StatusComplete: the task reached a terminal state this poll.
	StatusComplete
)

// Header is the reference-counted (by Go's GC, not manually), type-erased
// heap cell shared by the Task handle and the JoinHandle. pollFn and
// dropFn close over the concrete, generic future so Header itself never
// needs a type parameter.
type Header struct {
	state     state
	joinWaker Slot
	waker     *Waker

	scheduler    Scheduler
	kind         Kind
	pinnedWorker int32

	id uint64

	pollFn func(w *Waker) (out any, ready bool)
	dropFn func()

	output    any
	outputErr error

	// Meta is arbitrary user-attached data threaded through from spawn;
	// the runtime itself never inspects it.
	Meta any
}

// NewHeader constructs a Header in the Notified phase: a brand new task
// is, by construction, immediately due to be polled once it reaches the
// front of whichever queue spawn places it on.
func NewHeader(id uint64, kind Kind, pinnedWorker int32, scheduler Scheduler,
	pollFn func(w *Waker) (any, bool), dropFn func()) *Header {
	h := &Header{
		scheduler:    scheduler,
		kind:         kind,
		pinnedWorker: pinnedWorker,
		id:           id,
		pollFn:       pollFn,
		dropFn:       dropFn,
	}
	h.state.word.Store(uint64(Notified))
	h.waker = NewWaker(h.onWake)
	return h
}

// ID returns the task's external identity.
func (h *Header) ID() uint64 { return h.id }

// Kind reports whether the task is Sendable or Pinned.
func (h *Header) Kind() Kind { return h.kind }

// PinnedWorker is meaningful only when Kind() == Pinned.
func (h *Header) PinnedWorker() int32 { return h.pinnedWorker }

// IsFinished reports whether the task has reached COMPLETE.
func (h *Header) IsFinished() bool {
	return hasFlag(h.state.load(), flagComplete)
}

// Waker returns the task's own, reusable waker, installed into the
// future on every poll.
func (h *Header) Waker() *Waker { return h.waker }

// PollOn drives the task forward exactly once on behalf of workerID.
// Per spec.md §5's pinned-task safety contract, a Pinned task must never
// be polled (and, since dropFuture only ever runs inside a Poll call, never
// dropped) by any worker other than the one it was pinned to; this is
// enforced here rather than left to the caller, since a misrouted
// schedule would otherwise let two goroutines observe the same
// non-thread-safe future concurrently. A violation terminates the
// process with a diagnostic rather than risk that race.
func (h *Header) PollOn(workerID int) Status {
	if h.kind == Pinned && int32(workerID) != h.pinnedWorker {
		log.Fatal("pinned task polled on the wrong worker",
			rtlog.Err(fmt.Errorf("task %d pinned to worker %d, polled on worker %d",
				h.id, h.pinnedWorker, workerID)))
	}
	return h.Poll()
}

// Poll drives the task forward exactly once. The caller (a worker loop)
// must only call Poll when it owns the task, i.e. it was just dequeued
// in the Notified phase — calling it otherwise is an invariant
// violation and panics.
func (h *Header) Poll() Status {
	_, _, began := h.state.cas(func(cur uint64) (uint64, bool) {
		if phaseOf(cur) != Notified {
			return 0, false
		}
		return withPhase(cur, Running), true
	})
	if !began {
		panic("task: Poll called on a task that was not Notified")
	}

	if hasFlag(h.state.load(), flagCancelled) {
		h.dropFuture()
		h.complete(nil, &JoinError{Kind: JoinCancelled})
		return StatusComplete
	}

	out, ready, perr := h.invokePoll()
	if perr != nil {
		h.dropFuture()
		h.complete(nil, &JoinError{Kind: JoinPanic, Panic: perr})
		return StatusComplete
	}
	if ready {
		h.complete(out, nil)
		return StatusComplete
	}

	// Pending. If cancellation raced the poll, the spec treats this as a
	// cancelled completion rather than parking again.
	if hasFlag(h.state.load(), flagCancelled) {
		h.dropFuture()
		h.complete(nil, &JoinError{Kind: JoinCancelled})
		return StatusComplete
	}

	_, next, _ := h.state.cas(func(cur uint64) (uint64, bool) {
		switch phaseOf(cur) {
		case Running:
			return withPhase(cur, Sleep), true
		case Yield:
			return withPhase(cur, Notified), true
		default:
			return cur, false
		}
	})
	if phaseOf(next) == Notified {
		return StatusYielded
	}
	return StatusPending
}

func (h *Header) invokePoll() (out any, ready bool, perr any) {
	defer func() {
		if r := recover(); r != nil {
			perr = r
		}
	}()
	out, ready = h.pollFn(h.waker)
	return
}

func (h *Header) dropFuture() {
	if h.dropFn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic dropping task future", rtlog.Err(fmt.Errorf("%v", r)), rtlog.Stack())
		}
	}()
	h.dropFn()
}

// complete stores the output (or completion error) and transitions to
// COMPLETE, waking whichever JoinHandle waker is installed. Writes to
// output/outputErr happen-before the CAS that publishes flagComplete,
// so any reader that observes flagComplete via an atomic load sees them.
func (h *Header) complete(out any, err error) {
	h.output = out
	h.outputErr = err
	_, newWord, _ := h.state.cas(func(cur uint64) (uint64, bool) {
		return withFlag(cur, flagComplete), true
	})
	if hasFlag(newWord, flagJoinWaker) {
		h.joinWaker.Take().Wake()
	}
}

// Abort requests cancellation. Idempotent and safe from any thread; a
// no-op once the task has already completed.
func (h *Header) Abort() {
	old, _, changed := h.state.cas(func(cur uint64) (uint64, bool) {
		if hasFlag(cur, flagComplete) || hasFlag(cur, flagCancelled) {
			return cur, false
		}
		next := withFlag(cur, flagCancelled)
		if phaseOf(cur) == Sleep {
			next = withPhase(next, Notified)
		}
		return next, true
	})
	if changed && phaseOf(old) == Sleep {
		h.scheduler.Schedule(h)
	}
}

// IsCancelled reports whether Abort has been called (regardless of
// whether the task has finished unwinding yet).
func (h *Header) IsCancelled() bool {
	return hasFlag(h.state.load(), flagCancelled)
}

// onWake is the task's waker callback: Sleep->Notified schedules the
// task; a wake observed while Running becomes Yield so the in-flight
// poll's eventual Pending re-enters Notified instead of Sleep. Repeated
// wakes before the next poll coalesce for free, since Notified/Yield
// ignore further wake() calls.
func (h *Header) onWake() {
	old, _, changed := h.state.cas(func(cur uint64) (uint64, bool) {
		switch phaseOf(cur) {
		case Sleep:
			return withPhase(cur, Notified), true
		case Running:
			return withPhase(cur, Yield), true
		default:
			return cur, false
		}
	})
	if changed && phaseOf(old) == Sleep {
		h.scheduler.Schedule(h)
	}
}

// RegisterJoinWaker installs w as the waker to notify on completion.
// Returns true if the task was already complete (in which case the
// caller should read the result immediately rather than wait for a
// wake that will never come, since complete() only wakes a waker it
// observed via the JOIN_WAKER flag).
func (h *Header) RegisterJoinWaker(w *Waker) (alreadyDone bool) {
	for {
		cur := h.state.load()
		if hasFlag(cur, flagComplete) {
			return true
		}
		h.joinWaker.Store(w)
		next := withFlag(withFlag(cur, flagJoinWaker), flagJoinInterest)
		if h.state.word.CompareAndSwap(cur, next) {
			return false
		}
	}
}

// ClearJoinInterest clears JOIN_INTEREST, e.g. when a JoinHandle is
// dropped without being awaited; the task, once complete, is then
// responsible for letting its output be collected by the GC instead of
// a JoinHandle.
func (h *Header) ClearJoinInterest() {
	h.state.cas(func(cur uint64) (uint64, bool) {
		if !hasFlag(cur, flagJoinInterest) {
			return cur, false
		}
		return cur &^ flagJoinInterest, true
	})
}

// Result returns the stored output and completion error. Only valid
// after IsFinished() is observed true (or RegisterJoinWaker returned
// true / the installed waker fired).
func (h *Header) Result() (any, error) {
	return h.output, h.outputErr
}

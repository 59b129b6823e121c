package taskrt

import (
	"context"

	"github.com/taskrt/taskrt/internal/task"
)

// handleImpl is the common shape both a cooperatively-scheduled task's
// JoinHandle and a blocking-pool job's JoinHandle satisfy; JoinHandle[T]
// is a thin public wrapper over whichever one backs it.
type handleImpl[T any] interface {
	IsFinished() bool
	Poll(w *Waker) (T, bool)
	Wait(ctx context.Context) (T, error)
}

// JoinHandle is a typed handle to a spawned task's or blocking job's
// eventual output. It implements Future[T] so one task can await
// another's completion, and also exposes a blocking Wait for callers
// outside the scheduler.
type JoinHandle[T any] struct {
	inner   handleImpl[T]
	taskJH  *task.JoinHandle[T] // non-nil only when backed by a cooperatively-scheduled task
}

// IsFinished reports whether the task or job has completed, cancelled,
// or panicked.
func (j *JoinHandle[T]) IsFinished() bool { return j.inner.IsFinished() }

// ID returns the task's runtime-assigned identity, or 0 for a blocking
// job (which has no position in the cooperative scheduler to identify).
func (j *JoinHandle[T]) ID() uint64 {
	if j.taskJH == nil {
		return 0
	}
	return j.taskJH.ID()
}

// Abort requests cancellation of the task. A no-op for a blocking job:
// spec.md §4.6 gives blocking jobs no cancellation path once submitted.
func (j *JoinHandle[T]) Abort() {
	if j.taskJH != nil {
		j.taskJH.Abort()
	}
}

// AbortHandle returns a cloneable abort capability independent of this
// handle's lifetime. For a blocking job it is a capability whose Abort
// is a no-op.
func (j *JoinHandle[T]) AbortHandle() AbortHandle {
	if j.taskJH == nil {
		return AbortHandle{}
	}
	return AbortHandle{inner: j.taskJH.AbortHandle(), ok: true}
}

// Detach abandons interest in the task's output; the task keeps running
// to completion, but nothing will observe its result. A no-op for a
// blocking job (its result is simply never collected).
func (j *JoinHandle[T]) Detach() {
	if j.taskJH != nil {
		j.taskJH.Detach()
	}
}

// Poll implements Future[T]: used when a task awaits another task's (or
// blocking job's) JoinHandle directly.
func (j *JoinHandle[T]) Poll(w *Waker) (T, bool) { return j.inner.Poll(w) }

// Wait blocks the calling goroutine until the task completes or ctx is
// done, whichever happens first.
func (j *JoinHandle[T]) Wait(ctx context.Context) (T, error) { return j.inner.Wait(ctx) }

// AbortHandle is a capability to cancel a task without needing to hold
// its (possibly already-consumed) JoinHandle.
type AbortHandle struct {
	inner task.AbortHandle
	ok    bool
}

func (a AbortHandle) Abort() {
	if a.ok {
		a.inner.Abort()
	}
}

func (a AbortHandle) IsFinished() bool {
	if !a.ok {
		return true
	}
	return a.inner.IsFinished()
}

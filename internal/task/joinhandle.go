package task

import "context"

// JoinHandle is the generic, typed view over a Header that the spawner
// holds. It implements Future[T] itself so one task can await another
// task's JoinHandle exactly like any other future.
type JoinHandle[T any] struct {
	h         *Header
	abandoned bool
}

// NewJoinHandle wraps h for a spawner expecting output type T.
func NewJoinHandle[T any](h *Header) *JoinHandle[T] {
	return &JoinHandle[T]{h: h}
}

// ID returns the task's external identity.
func (j *JoinHandle[T]) ID() uint64 { return j.h.ID() }

// IsFinished reports whether the task has completed (successfully,
// cancelled, or panicked).
func (j *JoinHandle[T]) IsFinished() bool { return j.h.IsFinished() }

// Abort requests cancellation; see Header.Abort for the full contract.
func (j *JoinHandle[T]) Abort() { j.h.Abort() }

// AbortHandle returns a cloneable capability to abort the task without
// holding the JoinHandle itself.
func (j *JoinHandle[T]) AbortHandle() AbortHandle { return AbortHandle{h: j.h} }

// Detach clears this handle's interest in the output; the task
// continues running to completion and its output is dropped instead of
// delivered. Mirrors dropping a JoinHandle in the original.
func (j *JoinHandle[T]) Detach() {
	j.abandoned = true
	j.h.ClearJoinInterest()
}

// Poll implements Future[T]: used when one task awaits another's
// JoinHandle. Returns the zero value and false while pending; once the
// task is complete, returns its output and true. Poll cannot return an
// error, so a cancelled or panicked task is reported as the zero value
// with true; use Wait to see the JoinError.
func (j *JoinHandle[T]) Poll(w *Waker) (T, bool) {
	if done := j.h.RegisterJoinWaker(w); !done {
		var zero T
		return zero, false
	}
	return j.typedResult()
}

func (j *JoinHandle[T]) typedResult() (T, bool) {
	out, _ := j.h.Result()
	if out == nil {
		var zero T
		return zero, true
	}
	return out.(T), true
}

// Wait blocks the calling goroutine (not a task poll) until the task
// completes, cancellation of ctx, or ctx.Done. Used by code outside the
// runtime (tests, block_on's driver, CLI) that isn't itself a polled
// future.
func (j *JoinHandle[T]) Wait(ctx context.Context) (T, error) {
	done := make(chan struct{})
	w := NewWaker(func() { close(done) })
	if j.h.RegisterJoinWaker(w) {
		return j.result()
	}
	select {
	case <-done:
		return j.result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (j *JoinHandle[T]) result() (T, error) {
	out, err := j.h.Result()
	if err != nil {
		var zero T
		return zero, err
	}
	if out == nil {
		var zero T
		return zero, nil
	}
	return out.(T), nil
}

// AbortHandle is a capability to cancel a task without needing to hold
// its (possibly already-consumed) JoinHandle.
type AbortHandle struct {
	h *Header
}

func (a AbortHandle) Abort()          { a.h.Abort() }
func (a AbortHandle) IsFinished() bool { return a.h.IsFinished() }

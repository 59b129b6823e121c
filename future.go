package taskrt

import "github.com/taskrt/taskrt/internal/task"

// Future is the public alias for the runtime's core polling contract:
// Poll returns (value, true) once ready, or (zero, false) while it
// cannot yet make progress, having installed w to be woken when it can.
type Future[T any] = task.Future[T]

// Waker is the capability to mark a suspended future ready again.
type Waker = task.Waker

// NewWaker wraps an arbitrary zero-argument callback as a Waker. Used
// by callers driving futures outside the scheduler (tests, block_on
// helpers) that need their own wake signal.
func NewWaker(f func()) *Waker { return task.NewWaker(f) }

// Result is what Timeout wraps an inner future's output in.
type Result[T any] struct {
	Value     T
	TimedOut  bool
}

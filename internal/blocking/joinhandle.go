package blocking

import (
	"context"
	"errors"
	"sync"

	"github.com/taskrt/taskrt/internal/task"
)

// errPoolStopped is returned by a JoinHandle whose job was submitted
// after Stop.
var errPoolStopped = errors.New("blocking: pool is stopped")

// JoinHandle is the blocking-pool counterpart of a task JoinHandle
// (spec.md §4.6: "a blocking job exposes a JoinHandle analogous to
// regular tasks"). Unlike internal/task.JoinHandle it isn't backed by a
// Header state word — a blocking job runs directly on an OS thread
// outside the cooperative scheduler — so completion is published under
// a mutex and fans out to both a channel (for Wait) and an installed
// task.Waker (so a task can Poll it like any other future).
type JoinHandle[T any] struct {
	mu    sync.Mutex
	done  bool
	value T
	err   error
	waker *task.Waker
	ch    chan struct{}
}

func newJoinHandle[T any]() *JoinHandle[T] {
	return &JoinHandle[T]{ch: make(chan struct{})}
}

func (j *JoinHandle[T]) complete(v T, err error) {
	j.mu.Lock()
	if j.done {
		j.mu.Unlock()
		return
	}
	j.value, j.err, j.done = v, err, true
	w := j.waker
	j.waker = nil
	close(j.ch)
	j.mu.Unlock()
	w.Wake()
}

// IsFinished reports whether the job has completed.
func (j *JoinHandle[T]) IsFinished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.done
}

// Poll implements the Future[T] shape used by internal/task: installs w
// to be woken on completion, returning (zero, false) until then.
func (j *JoinHandle[T]) Poll(w *task.Waker) (T, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return j.value, true
	}
	j.waker = w
	var zero T
	return zero, false
}

// Wait blocks the calling goroutine until the job completes or ctx is
// done, whichever comes first.
func (j *JoinHandle[T]) Wait(ctx context.Context) (T, error) {
	j.mu.Lock()
	if j.done {
		v, err := j.value, j.err
		j.mu.Unlock()
		return v, err
	}
	j.mu.Unlock()
	select {
	case <-j.ch:
		j.mu.Lock()
		defer j.mu.Unlock()
		return j.value, j.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

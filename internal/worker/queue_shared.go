package worker

import (
	"sync"

	"github.com/taskrt/taskrt/internal/task"
)

// sharedQueue is the multi-producer, single-consumer FIFO other threads
// push cross-thread work into (spec.md §4.2/§5). A genuinely lock-free
// MPSC ring has no fitting library in the retrieved stack, and hand
// rolling one needs exactly the kind of unsafe pointer aliasing the
// design notes flag as something to re-architect away from rather than
// reproduce; a mutex-guarded slice gives the same externally-observable
// FIFO contract and keeps producers' critical sections (append + one
// counter update) short, which is all spec.md §5 actually requires of
// them.
type sharedQueue struct {
	mu  sync.Mutex
	buf []*task.Header
}

func newSharedQueue() *sharedQueue {
	return &sharedQueue{}
}

// Push enqueues h; called by any producer thread.
func (q *sharedQueue) Push(h *task.Header) {
	q.mu.Lock()
	q.buf = append(q.buf, h)
	q.mu.Unlock()
}

// PopN dequeues up to n tasks in FIFO order; called only by the owning
// worker, draining what producers have pushed since the last fold.
func (q *sharedQueue) PopN(n int) []*task.Header {
	if n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.buf) {
		n = len(q.buf)
	}
	out := make([]*task.Header, n)
	copy(out, q.buf[:n])
	remaining := copy(q.buf, q.buf[n:])
	q.buf = q.buf[:remaining]
	return out
}

package worker

import "github.com/taskrt/taskrt/internal/task"

// localQueue is the single-consumer deque each Worker owns exclusively.
// No other goroutine may ever touch it — there is deliberately no
// locking here, matching the "unsafe local-queue aliasing" design note:
// the original reaches for interior mutability under a no-alias
// contract, which in Go we get for free by giving the owning goroutine
// sole, non-reentrant access instead of exposing the slice itself.
type localQueue struct {
	buf []*task.Header
	// head is the index of the next task to pop; tail is len(buf).
	// Popped entries are nilled out to let the GC reclaim finished
	// tasks promptly instead of waiting for buf to be compacted.
	head int
}

func newLocalQueue(capHint int) *localQueue {
	return &localQueue{buf: make([]*task.Header, 0, capHint)}
}

// PushBack enqueues h at the tail: used both for freshly-pinned local
// spawns and for re-queueing a task that yielded cooperatively during
// its last poll.
func (q *localQueue) PushBack(h *task.Header) {
	q.buf = append(q.buf, h)
}

// PopFront dequeues the task at the head, compacting the backing slice
// once it has drained far enough to be worth it.
func (q *localQueue) PopFront() (*task.Header, bool) {
	if q.head >= len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
		return nil, false
	}
	h := q.buf[q.head]
	q.buf[q.head] = nil
	q.head++
	if q.head > 64 && q.head*2 > len(q.buf) {
		n := copy(q.buf, q.buf[q.head:])
		q.buf = q.buf[:n]
		q.head = 0
	}
	return h, true
}

// Len reports the number of tasks currently queued.
func (q *localQueue) Len() int { return len(q.buf) - q.head }

// IsEmpty reports whether the deque currently holds no tasks.
func (q *localQueue) IsEmpty() bool { return q.head >= len(q.buf) }

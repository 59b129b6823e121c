package timer

import (
	"container/heap"
	"time"

	"github.com/taskrt/taskrt/internal/task"
)

// Handle is an opaque reference to an armed timer entry, returned by
// SleepFor/SleepAt and consumed by Reset and Cancel. The Store keeps its
// own reference only while the entry is armed; it drops it once the
// entry fires or is cancelled.
type Handle struct {
	e *entry
}

// Fired reports whether the timer has already been fetched and woken.
func (h Handle) Fired() bool { return h.e.fired }

// entryHeap is a container/heap min-heap ordered by (deadline, seq),
// the balanced-ordered-map substitute called for in spec.md §4.4: Go's
// standard library ships container/heap for exactly this shape, and
// nothing in the retrieved stack supplies a general ordered map/tree
// that would do better here, so the binary heap (rather than a
// hand-rolled balanced tree) is the idiomatic choice.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Store is a single worker's timer service. It is not safe for
// concurrent use: per spec.md §5, a worker's timer store is owned
// exclusively by its own thread.
type Store struct {
	h       entryHeap
	nextSeq uint64
}

// New constructs an empty timer store.
func New() *Store {
	return &Store{}
}

// SleepFor arms a timer that fires after d elapses from now.
func (s *Store) SleepFor(now time.Time, d time.Duration) Handle {
	return s.SleepAt(now.Add(d))
}

// SleepAt arms a timer that fires at the given deadline.
func (s *Store) SleepAt(deadline time.Time) Handle {
	e := &entry{deadline: deadline, seq: s.nextSeq}
	s.nextSeq++
	heap.Push(&s.h, e)
	return Handle{e: e}
}

// InstallWaker attaches the waker to wake when h fires. If h has
// already fired, the waker is invoked immediately instead of stored.
func (s *Store) InstallWaker(h Handle, w *task.Waker) {
	if h.e.fired {
		w.Wake()
		return
	}
	h.e.waker = w
}

// Reset removes h's entry if still armed, updates its deadline, and
// reinserts it — spec.md §4.4's reset_at.
func (s *Store) Reset(h Handle, deadline time.Time) Handle {
	if h.e.index >= 0 && !h.e.fired {
		heap.Remove(&s.h, h.e.index)
	}
	h.e.deadline = deadline
	h.e.fired = false
	h.e.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.h, h.e)
	return h
}

// Cancel removes h's entry if it is still armed. Idempotent, and a
// no-op if the entry has already fired; matches spec.md §4.4's "a drop
// of Sleep removes its entry" contract.
func (s *Store) Cancel(h Handle) {
	if h.e.index >= 0 && !h.e.fired {
		heap.Remove(&s.h, h.e.index)
	}
}

// Len reports how many timers are currently armed (not yet fired).
func (s *Store) Len() int { return len(s.h) }

// NextTimeout reports how long until the earliest-armed timer fires,
// clamped to zero if it is already due, or a negative duration if no
// timer is armed (meaning: no timer bound on how long the caller may
// block).
func (s *Store) NextTimeout(now time.Time) time.Duration {
	if len(s.h) == 0 {
		return -1
	}
	d := s.h[0].deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Fetch removes and fires every entry whose deadline is at or before
// upto, waking each entry's installed waker, and reports how many fired.
func (s *Store) Fetch(upto time.Time) int {
	n := 0
	for len(s.h) > 0 && !s.h[0].deadline.After(upto) {
		e := heap.Pop(&s.h).(*entry)
		e.fired = true
		n++
		if e.waker != nil {
			w := e.waker
			e.waker = nil
			w.Wake()
		}
	}
	return n
}

// Package timer implements the per-worker timer service described in
// spec.md §4.4: a deadline-ordered store supporting insert, reset,
// earliest-deadline inspection, and batch-fire of everything due.
package timer

import (
	"time"

	"github.com/taskrt/taskrt/internal/task"
)

// entry is one armed timer. Entries are never shared across workers;
// the Store that owns an entry is the only thing that ever touches its
// fields outside of the waker it installs.
type entry struct {
	deadline time.Time
	seq      uint64 // insertion sequence, breaks deadline ties FIFO
	index    int    // current position in the heap, maintained by container/heap
	fired    bool
	waker    *task.Waker
}

// Fired reports whether this entry's deadline has already been
// processed by Fetch.
func (e *entry) Fired() bool { return e.fired }

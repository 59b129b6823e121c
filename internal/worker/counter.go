// Package worker implements the per-worker event loop: local/shared
// queue discipline, the packed load counter, and least-loaded dispatch.
package worker

import "go.uber.org/atomic"

// counterBits packs the three fields spec.md §4.2 describes into one
// atomic word: local_count, shared_count, and the NOTIFIED bit that
// arbitrates whether a parked worker still needs an explicit wakeup.
//
//	bit 63        : notified
//	bits [32:63)  : shared_count
//	bits [0:32)   : local_count
const (
	localBits  = 32
	localMask  = (uint64(1) << localBits) - 1
	notifiedBit = uint64(1) << 63
)

// Counter is the atomic load counter described by spec.md §4.2/§4.3: the
// dispatcher reads it (unsynchronized snapshot) to pick the least-loaded
// worker, producers increment its shared half when they push cross-thread
// work, and the owning worker is the only party that ever decrements the
// local half or clears NOTIFIED.
type Counter struct {
	word atomic.Uint64
}

// Snapshot is a decoded read of a Counter at one instant.
type Snapshot struct {
	Local    uint32
	Shared   uint32
	Notified bool
}

func decode(w uint64) Snapshot {
	return Snapshot{
		Local:    uint32(w & localMask),
		Shared:   uint32((w &^ notifiedBit) >> localBits),
		Notified: w&notifiedBit != 0,
	}
}

// Load returns the current snapshot.
func (c *Counter) Load() Snapshot { return decode(c.word.Load()) }

// Total is what the dispatcher's least-loaded scan compares.
func (s Snapshot) Total() uint64 { return uint64(s.Local) + uint64(s.Shared) }

// HasSharedWork reports whether any task is sitting in the shared queue
// that has not yet been folded into local_count.
func (s Snapshot) HasSharedWork() bool { return s.Shared > 0 }

// IncreaseLocal is called by the owning worker only, when it pushes a
// new task directly onto its own local deque (a pinned fast path or a
// local spawn). A cooperative yield re-queue keeps its existing count
// and does not call this.
func (c *Counter) IncreaseLocal() {
	c.word.Add(1)
}

// DecreaseLocal is called by the owning worker after popping and fully
// retiring (not re-queueing) a task from the local deque. Returns the
// resulting snapshot so the caller can decide whether to fold shared
// work in (spec.md §4.2 step 1: "using that observation, fold any
// pending shared_count into local").
func (c *Counter) DecreaseLocal() Snapshot {
	return decode(c.word.Sub(1))
}

// IncreaseShared is called by any producer (including the owning
// worker itself, for a cross-thread-style pinned submission) pushing
// into the shared queue. Returns whether the NOTIFIED flag was *not*
// already set beforehand — the caller should wake the worker's poller
// exactly when this is true, per spec.md §4.3.
func (c *Counter) IncreaseShared() (shouldWake bool) {
	delta := uint64(1) << localBits
	for {
		cur := c.word.Load()
		next := cur + delta
		if cur&notifiedBit == 0 {
			next |= notifiedBit
		}
		if c.word.CompareAndSwap(cur, next) {
			return cur&notifiedBit == 0
		}
	}
}

// MoveSharedToLocal is called by the owning worker when it has decided
// to fold n previously-observed shared tasks into local_count (it has
// already physically moved them onto the local deque).
func (c *Counter) MoveSharedToLocal(n uint32) {
	if n == 0 {
		return
	}
	sharedDelta := uint64(n) << localBits
	for {
		cur := c.word.Load()
		next := (cur - sharedDelta) + uint64(n)
		if c.word.CompareAndSwap(cur, next) {
			return
		}
	}
}

// AcceptNotifyOnceIfSharedEmpty implements spec.md §4.2 step 3: "attempt
// to accept a notification: atomically clear the NOTIFIED flag iff
// shared_count == 0". Returns (cleared, snapshot-after). If shared_count
// was not zero, NOTIFIED is left set and the caller must instead move
// the shared work into local and loop.
func (c *Counter) AcceptNotifyOnceIfSharedEmpty() (cleared bool, after Snapshot) {
	for {
		cur := c.word.Load()
		snap := decode(cur)
		if snap.Shared != 0 {
			return false, snap
		}
		next := cur &^ notifiedBit
		if c.word.CompareAndSwap(cur, next) {
			return true, decode(next)
		}
	}
}

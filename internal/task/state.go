// Package task implements the task header and its atomic state machine:
// the single synchronization point for a task's lifecycle, shared by the
// Task handle (whoever is currently polling it) and the JoinHandle (the
// spawner, interested in the output).
package task

import "go.uber.org/atomic"

// Phase is the 2-bit lifecycle phase packed into the low bits of the
// state word.
type Phase uint64

const (
	// Running: currently being polled by a worker.
	Running Phase = iota
	// Sleep: not on any queue, waiting for a waker to fire.
	Sleep
	// Notified: on some queue, ready to be polled.
	Notified
	// Yield: a wake happened during a poll; the next Pending re-enters
	// Notified rather than Sleep, so a wakeup during poll is never lost.
	Yield
)

const phaseMask = 0x3

// Flags occupy the bits above the phase.
const (
	flagComplete     = 1 << 2
	flagJoinInterest = 1 << 3
	flagJoinWaker    = 1 << 4
	flagCancelled    = 1 << 5
)

// state packs Phase and the four flags into a single atomic word so every
// transition is one CAS, with acquire/release ordering supplied by
// go.uber.org/atomic.Uint64's CompareAndSwap.
type state struct {
	word atomic.Uint64
}

func newState() state {
	var s state
	s.word.Store(uint64(Sleep))
	return s
}

func (s *state) load() uint64 { return s.word.Load() }

func phaseOf(w uint64) Phase { return Phase(w & phaseMask) }

func withPhase(w uint64, p Phase) uint64 { return (w &^ phaseMask) | uint64(p) }

func hasFlag(w uint64, flag uint64) bool { return w&flag != 0 }

func withFlag(w, flag uint64) uint64 { return w | flag }

// cas retries f until it either reports no further change is needed (ok
// but unchanged) or successfully swaps in a new word. f computes the next
// word from the current one; returning (0, false) means "nothing to do,
// stop looping".
func (s *state) cas(f func(cur uint64) (next uint64, do bool)) (old, new uint64, did bool) {
	for {
		cur := s.word.Load()
		next, do := f(cur)
		if !do {
			return cur, cur, false
		}
		if s.word.CompareAndSwap(cur, next) {
			return cur, next, true
		}
	}
}

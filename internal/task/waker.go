package task

import "sync/atomic"

// Waker is the capability to mark a task (or any other waiting party) as
// ready. Unlike the Rust original there is no manual refcounting here:
// a *Waker is an ordinary GC-managed value, freely copyable and safely
// shared across goroutines. Calling Wake more than once is always safe
// and cheap; Wake is expected to coalesce repeated calls itself where
// that matters (see Header.onWake for the task case).
type Waker struct {
	wake func()
}

// NewWaker builds a Waker around an arbitrary zero-argument callback.
// Used for join handles, timers, and reactor readiness wakers, where the
// "task" being woken isn't necessarily a Header.
func NewWaker(f func()) *Waker {
	if f == nil {
		return nil
	}
	return &Waker{wake: f}
}

// Wake invokes the callback. Nil-safe: waking a nil Waker is a no-op,
// which keeps call sites that haven't installed a waker yet simple.
func (w *Waker) Wake() {
	if w == nil || w.wake == nil {
		return
	}
	w.wake()
}

// Slot is a single-writer-at-a-time box for a *Waker, used wherever the
// spec calls for a waker "slot": the join waker on a Header, and the
// read/write wakers on a reactor record. It is backed by a plain
// sync/atomic.Pointer rather than go.uber.org/atomic, since the generic
// stdlib form is the more direct fit for an arbitrary pointee and no
// third-party package in the retrieved stack offers anything narrower.
type Slot struct {
	p atomic.Pointer[Waker]
}

// Store installs w, replacing whatever was there. Safe to call from any
// goroutine; races between concurrent Store and Load are resolved by the
// caller's own ownership discipline (the JOIN_WAKER flag for the join
// slot, the readiness version counter for reactor wakers).
func (s *Slot) Store(w *Waker) { s.p.Store(w) }

// Load returns the currently installed waker, or nil.
func (s *Slot) Load() *Waker { return s.p.Load() }

// Take atomically removes and returns the installed waker.
func (s *Slot) Take() *Waker { return s.p.Swap(nil) }

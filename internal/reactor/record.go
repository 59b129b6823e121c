// Package reactor implements the I/O driver: it owns the OS readiness
// poller, maps registered sources to per-resource readiness records, and
// wakes the direction-specific waker installed on each record.
package reactor

import (
	"go.uber.org/atomic"

	"github.com/taskrt/taskrt/internal/task"
)

// Readiness bits packed into Record.readiness, per spec.md §3/§4.5: each
// direction is a tri-state (unknown/ready/closed) plus a version counter
// that defeats a stale clear racing a fresh readiness event.
const (
	bitReadable    = 1 << 0
	bitWritable    = 1 << 1
	bitReadClosed  = 1 << 2
	bitWriteClosed = 1 << 3
	versionShift   = 4
	versionStep    = 1 << versionShift
)

// Record is the per-resource readiness record: one per registered I/O
// source, allocated on the heap and never moved, so its address is
// stable for the lifetime of the registration and usable as a map key
// (see Registry) in place of the unsafe exposed-pointer token trick the
// original relies on.
type Record struct {
	Token uintptr
	FD    int

	readiness  atomic.Uint32
	readWaker  task.Slot
	writeWaker task.Slot
}

func newRecord(fd int) *Record {
	r := &Record{FD: fd}
	return r
}

// Readable/Writable/ReadClosed/WriteClosed report the last readiness
// the reactor observed for this record.
func (r *Record) Readable() bool    { return r.readiness.Load()&bitReadable != 0 }
func (r *Record) Writable() bool    { return r.readiness.Load()&bitWritable != 0 }
func (r *Record) ReadClosed() bool  { return r.readiness.Load()&bitReadClosed != 0 }
func (r *Record) WriteClosed() bool { return r.readiness.Load()&bitWriteClosed != 0 }
func (r *Record) version() uint32   { return r.readiness.Load() >> versionShift }

// markReadable/markWritable are called by the reactor's event dispatch
// when epoll reports EPOLLIN/EPOLLOUT (or the corresponding close/error
// bits); they OR the bit in, bump the version, and return the new word
// so the caller can decide whether to wake a waker.
func (r *Record) markReadable() uint32  { return r.or(bitReadable) }
func (r *Record) markWritable() uint32  { return r.or(bitWritable) }
func (r *Record) markReadClosed() uint32 { return r.or(bitReadClosed) }
func (r *Record) markWriteClosed() uint32 { return r.or(bitWriteClosed) }

func (r *Record) or(bit uint32) uint32 {
	for {
		cur := r.readiness.Load()
		next := (cur | bit) + versionStep
		if r.readiness.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// ClearReadableIfVersionUnchanged implements the async_read contract
// from spec.md §4.5: on WouldBlock, a reader clears READABLE only if no
// fresh readiness event arrived since it observed `seenVersion` — racing
// a clear against a concurrent reactor event would otherwise lose a
// wakeup.
func (r *Record) ClearReadableIfVersionUnchanged(seenVersion uint32) bool {
	return r.clearIfVersionUnchanged(bitReadable, seenVersion)
}

// ClearWritableIfVersionUnchanged is the write-direction counterpart.
func (r *Record) ClearWritableIfVersionUnchanged(seenVersion uint32) bool {
	return r.clearIfVersionUnchanged(bitWritable, seenVersion)
}

func (r *Record) clearIfVersionUnchanged(bit uint32, seenVersion uint32) bool {
	for {
		cur := r.readiness.Load()
		if cur>>versionShift != seenVersion {
			return false
		}
		next := cur &^ bit
		if r.readiness.CompareAndSwap(cur, next) {
			return true
		}
	}
}

// Version exposes the current version so a caller can remember it
// before attempting an operation, then pass it back to the Clear*
// methods above.
func (r *Record) Version() uint32 { return r.version() }

// InstallReadWaker/InstallWriteWaker store the waker to notify the next
// time the corresponding direction becomes ready.
func (r *Record) InstallReadWaker(w *task.Waker)  { r.readWaker.Store(w) }
func (r *Record) InstallWriteWaker(w *task.Waker) { r.writeWaker.Store(w) }

func (r *Record) takeReadWaker() *task.Waker  { return r.readWaker.Take() }
func (r *Record) takeWriteWaker() *task.Waker { return r.writeWaker.Take() }

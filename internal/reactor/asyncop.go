//go:build linux

package reactor

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/taskrt/taskrt/internal/task"
)

// AsyncResult is what an AsyncOp's future resolves to: the attempt's
// value together with any non-retryable error it produced.
type AsyncResult[T any] struct {
	Value T
	Err   error
}

// AsyncOp implements spec.md §4.5's async_read/async_write contract: it
// repeatedly calls attempt; on EAGAIN/EWOULDBLOCK it atomically clears
// the relevant readiness bit (only if the version hasn't moved since it
// was last observed), installs the polling task's waker for that
// direction, and reports Pending. Any other outcome (success or a
// non-retryable error) resolves the future immediately.
type AsyncOp[T any] struct {
	rec     *Record
	write   bool
	attempt func() (T, error)

	haveVersion bool
	version     uint32
}

// NewAsyncRead builds a read-direction AsyncOp against rec.
func NewAsyncRead[T any](rec *Record, attempt func() (T, error)) *AsyncOp[T] {
	return &AsyncOp[T]{rec: rec, attempt: attempt}
}

// NewAsyncWrite builds a write-direction AsyncOp against rec.
func NewAsyncWrite[T any](rec *Record, attempt func() (T, error)) *AsyncOp[T] {
	return &AsyncOp[T]{rec: rec, write: true, attempt: attempt}
}

func (op *AsyncOp[T]) Poll(w *task.Waker) (AsyncResult[T], bool) {
	v, err := op.attempt()
	if !isWouldBlock(err) {
		return AsyncResult[T]{Value: v, Err: err}, true
	}
	if !op.haveVersion {
		op.version = op.rec.Version()
		op.haveVersion = true
	}
	var cleared bool
	if op.write {
		cleared = op.rec.ClearWritableIfVersionUnchanged(op.version)
	} else {
		cleared = op.rec.ClearReadableIfVersionUnchanged(op.version)
	}
	if !cleared {
		// A fresh readiness event raced us; retry immediately instead of
		// parking on a waker that would never fire (the event that would
		// have woken it already happened).
		op.haveVersion = false
		return op.Poll(w)
	}
	if op.write {
		op.rec.InstallWriteWaker(w)
	} else {
		op.rec.InstallReadWaker(w)
	}
	op.haveVersion = false
	var zero AsyncResult[T]
	return zero, false
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

package taskrt

import (
	"errors"
	"fmt"

	"github.com/taskrt/taskrt/internal/task"
)

// JoinError is returned from JoinHandle.Wait when the task did not
// produce a value: it was aborted, or its future (or its drop) panicked.
type JoinError = task.JoinError

// JoinErrorKind enumerates why a JoinHandle's output never arrived.
type JoinErrorKind = task.JoinErrorKind

const (
	JoinCancelled = task.JoinCancelled
	JoinPanic     = task.JoinPanic
)

// ErrTimeout is a sentinel error for a deadline that elapsed. Timeout
// itself does not return it: it reports expiry through Result.TimedOut.
var ErrTimeout = errors.New("taskrt: deadline exceeded")

// IoError wraps a failed I/O operation with the name of the op that
// failed, mirroring the shape the teacher's error package uses for
// operation-tagged errors.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return fmt.Sprintf("taskrt: %s: %v", e.Op, e.Err) }
func (e *IoError) Unwrap() error { return e.Err }

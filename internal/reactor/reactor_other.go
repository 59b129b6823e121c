//go:build !linux

package reactor

import (
	"errors"
	"time"

	"github.com/taskrt/taskrt/internal/rtmetrics"
)

// ErrUnsupportedPlatform is returned by New on platforms other than
// Linux. Non-goals (spec.md §1) exclude kqueue/IOCP backends; this stub
// keeps the package importable for cross-compilation without silently
// degrading to a no-op poller.
var ErrUnsupportedPlatform = errors.New("reactor: epoll backend unavailable on this platform")

// Reactor is an unusable placeholder outside Linux.
type Reactor struct{}

func New(id int, m *rtmetrics.Runtime) (*Reactor, error) {
	return nil, ErrUnsupportedPlatform
}

func (r *Reactor) Register(fd int, interest Interest) (*Record, error) {
	return nil, ErrUnsupportedPlatform
}

func (r *Reactor) Deregister(rec *Record) {}

func (r *Reactor) Poll(timeout time.Duration) error { return ErrUnsupportedPlatform }

func (r *Reactor) WakeUp() error { return ErrUnsupportedPlatform }

func (r *Reactor) Close() error { return nil }

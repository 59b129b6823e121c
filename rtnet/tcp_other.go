//go:build !linux

package rtnet

import (
	"errors"

	"github.com/taskrt/taskrt"
)

// ErrUnsupportedPlatform is returned by Listen/Dial on platforms other
// than Linux, matching internal/reactor's epoll-only scope.
var ErrUnsupportedPlatform = errors.New("rtnet: unavailable on this platform")

type TCPListener struct{}
type TCPConn struct{}

func Listen(ctx *taskrt.Context, addr string) (*TCPListener, error) { return nil, ErrUnsupportedPlatform }
func Dial(ctx *taskrt.Context, addr string) (*TCPConn, error)       { return nil, ErrUnsupportedPlatform }

func (l *TCPListener) Close() error { return nil }
func (c *TCPConn) Close() error     { return nil }

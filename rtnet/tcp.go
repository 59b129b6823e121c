//go:build linux

// Package rtnet provides minimal TCP wrappers driven by the runtime's
// own reactor rather than Go's built-in network poller, so that I/O
// exercises taskrt's async_read/async_write contract end to end. It is
// a thin adapter layer in the spirit of the original implementation's
// net/tcp wrappers, not part of the scheduler/reactor/timer core.
package rtnet

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/taskrt/taskrt"
	"github.com/taskrt/taskrt/internal/reactor"
)

// TCPListener is a non-blocking, reactor-registered TCP listener.
type TCPListener struct {
	fd  int
	rec *reactor.Record
	rx  *reactor.Reactor
}

// Listen creates a listening socket bound to addr ("host:port"),
// registers it with ctx's reactor, and returns a TCPListener.
func Listen(ctx *taskrt.Context, addr string) (*TCPListener, error) {
	a, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &taskrt.IoError{Op: "resolve", Err: err}
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, &taskrt.IoError{Op: "socket", Err: err}
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "setsockopt", Err: err}
	}
	sa, err := toSockaddr(a)
	if err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "resolve", Err: err}
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "bind", Err: err}
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "listen", Err: err}
	}

	rx := ctx.IOReactor()
	rec, err := rx.Register(fd, reactor.InterestRead)
	if err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "register", Err: err}
	}
	return &TCPListener{fd: fd, rec: rec, rx: rx}, nil
}

// AcceptFuture returns a future resolving to a freshly accepted
// TCPConn, retrying on EAGAIN via the reactor per spec.md §4.5.
func (l *TCPListener) AcceptFuture() taskrt.Future[reactor.AsyncResult[*TCPConn]] {
	return reactor.NewAsyncRead(l.rec, func() (*TCPConn, error) {
		connFD, _, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			return nil, err
		}
		rec, err := l.rx.Register(connFD, reactor.InterestReadWrite)
		if err != nil {
			unix.Close(connFD)
			return nil, err
		}
		return &TCPConn{fd: connFD, rec: rec, rx: l.rx}, nil
	})
}

// LocalAddr reports the address the listener is bound to, useful when
// Listen was given port 0 and the OS chose one.
func (l *TCPListener) LocalAddr() (string, error) {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return "", &taskrt.IoError{Op: "getsockname", Err: err}
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", fmt.Errorf("rtnet: unexpected sockaddr type %T", sa)
	}
	ip := net.IP(sa4.Addr[:])
	return fmt.Sprintf("%s:%d", ip.String(), sa4.Port), nil
}

// Close deregisters and closes the listening socket.
func (l *TCPListener) Close() error {
	l.rx.Deregister(l.rec)
	return unix.Close(l.fd)
}

// TCPConn is a non-blocking, reactor-registered TCP connection.
type TCPConn struct {
	fd  int
	rec *reactor.Record
	rx  *reactor.Reactor
}

// Dial connects to addr and registers the resulting socket with ctx's
// reactor. Since the connect itself is typically instantaneous for
// loopback/test use, this performs a blocking connect and wraps the
// resulting fd for subsequent non-blocking read/write; a fully
// non-blocking three-way handshake is a natural follow-up once this
// adapter needs to dial real, possibly-slow remote peers.
func Dial(ctx *taskrt.Context, addr string) (*TCPConn, error) {
	a, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, &taskrt.IoError{Op: "resolve", Err: err}
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, &taskrt.IoError{Op: "socket", Err: err}
	}
	sa, err := toSockaddr(a)
	if err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "resolve", Err: err}
	}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "connect", Err: err}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "set_nonblock", Err: err}
	}
	rx := ctx.IOReactor()
	rec, err := rx.Register(fd, reactor.InterestReadWrite)
	if err != nil {
		unix.Close(fd)
		return nil, &taskrt.IoError{Op: "register", Err: err}
	}
	return &TCPConn{fd: fd, rec: rec, rx: rx}, nil
}

// ReadFuture returns a future resolving to the number of bytes read
// into buf, retrying on EAGAIN via the reactor.
func (c *TCPConn) ReadFuture(buf []byte) taskrt.Future[reactor.AsyncResult[int]] {
	return reactor.NewAsyncRead(c.rec, func() (int, error) {
		return unix.Read(c.fd, buf)
	})
}

// WriteFuture returns a future resolving to the number of bytes written
// from buf, retrying on EAGAIN via the reactor.
func (c *TCPConn) WriteFuture(buf []byte) taskrt.Future[reactor.AsyncResult[int]] {
	return reactor.NewAsyncWrite(c.rec, func() (int, error) {
		return unix.Write(c.fd, buf)
	})
}

// Close deregisters and closes the connection.
func (c *TCPConn) Close() error {
	c.rx.Deregister(c.rec)
	return unix.Close(c.fd)
}

func toSockaddr(a *net.TCPAddr) (unix.Sockaddr, error) {
	ip4 := a.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("rtnet: only IPv4 addresses are supported, got %s", a.IP)
	}
	sa := &unix.SockaddrInet4{Port: a.Port}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

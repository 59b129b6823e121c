//go:build linux

package reactor

import (
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/taskrt/taskrt/internal/rtlog"
	"github.com/taskrt/taskrt/internal/rtmetrics"
)

func (i Interest) epollEvents() uint32 {
	var ev uint32
	if i&InterestRead != 0 {
		ev |= unix.EPOLLIN
	}
	if i&InterestWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	// Edge-triggered per spec.md §4.5's assumption; also watch for
	// peer-closed so a blocked reader/writer observes EOF promptly.
	ev |= unix.EPOLLET | unix.EPOLLRDHUP
	return ev
}

// Reactor owns one epoll instance, per spec.md §2's per-worker driver
// shape (each worker gets its own Reactor rather than the runtime
// sharing a single poller across threads).
type Reactor struct {
	epfd     int
	wakeFD   int
	registry *Registry
	log      rtlog.Logger
	metrics  *rtmetrics.Runtime
}

// New creates a Reactor with a fresh epoll instance and a self-pipe
// (eventfd) registered under token 0, the reserved self-wakeup token
// from spec.md §6.
func New(id int, m *rtmetrics.Runtime) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFD, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	r := &Reactor{
		epfd:     epfd,
		wakeFD:   wakeFD,
		registry: NewRegistry(),
		log:      rtlog.GetLogger("Reactor", itoa(id)),
		metrics:  m,
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN} // data field left at token 0
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFD, &ev); err != nil {
		unix.Close(wakeFD)
		unix.Close(epfd)
		return nil, err
	}
	return r, nil
}

// WakeUp unblocks a concurrent or upcoming Poll call; used by the
// dispatcher when it pushes cross-thread work onto a parked worker's
// shared queue (spec.md §4.2's "self-pipe/eventfd event").
func (r *Reactor) WakeUp() error {
	var one [8]byte
	one[0] = 1
	_, err := unix.Write(r.wakeFD, one[:])
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return err
	}
	return nil
}

func (r *Reactor) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(r.wakeFD, buf[:])
		if err != nil {
			return
		}
	}
}

// Register attaches fd to the poller and returns its readiness record.
func (r *Reactor) Register(fd int, interest Interest) (*Record, error) {
	rec := newRecord(fd)
	rec.Token = uintptr(unsafe.Pointer(rec))
	ev := unix.EpollEvent{Events: interest.epollEvents()}
	*(*uint64)(unsafe.Pointer(&ev.Fd)) = uint64(rec.Token) //nolint:govet // packs token into the event's opaque data field
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, err
	}
	r.registry.Put(rec)
	if r.metrics != nil {
		r.metrics.ReactorRegisteredFDs.Set(float64(r.registry.Len()))
	}
	return rec, nil
}

// Deregister detaches rec's fd from the poller; best-effort, always
// attempted on drop by the owning I/O wrapper.
func (r *Reactor) Deregister(rec *Record) {
	_ = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, rec.FD, nil)
	r.registry.Delete(rec.Token)
	if r.metrics != nil {
		r.metrics.ReactorRegisteredFDs.Set(float64(r.registry.Len()))
	}
}

// Poll blocks for at most timeout (or indefinitely if timeout < 0, or
// returns immediately if timeout == 0) waiting for readiness events,
// dispatching each to the owning Record's wakers before returning.
// EINTR is retried transparently, per spec.md §7; any other error is
// fatal to the runtime.
func (r *Reactor) Poll(timeout time.Duration) error {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout / time.Millisecond)
	}
	var events [128]unix.EpollEvent
	for {
		n, err := unix.EpollWait(r.epfd, events[:], ms)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		r.dispatch(events[:n])
		return nil
	}
}

func (r *Reactor) dispatch(events []unix.EpollEvent) {
	for _, ev := range events {
		token := uintptr(*(*uint64)(unsafe.Pointer(&ev.Fd)))
		if token == 0 {
			r.drainWake()
			continue
		}
		rec, ok := r.registry.Get(token)
		if !ok {
			continue // deregistered between epoll_wait returning and us looking it up
		}
		r.dispatchOne(rec, ev.Events)
	}
}

func (r *Reactor) dispatchOne(rec *Record, events uint32) {
	woke := false
	if events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		rec.markReadable()
		if w := rec.takeReadWaker(); w != nil {
			w.Wake()
			woke = true
		}
	}
	if events&unix.EPOLLRDHUP != 0 {
		rec.markReadClosed()
	}
	if events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		rec.markWritable()
		if w := rec.takeWriteWaker(); w != nil {
			w.Wake()
			woke = true
		}
	}
	if events&unix.EPOLLERR != 0 && events&(unix.EPOLLIN|unix.EPOLLOUT) == 0 {
		r.log.Debug("poller reported an error event with no readiness")
	}
	if woke && r.metrics != nil {
		r.metrics.ReactorEventsDispatched.Inc()
	}
}

// Close releases the epoll and eventfd descriptors.
func (r *Reactor) Close() error {
	err1 := unix.Close(r.wakeFD)
	err2 := unix.Close(r.epfd)
	if err1 != nil {
		return err1
	}
	return err2
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

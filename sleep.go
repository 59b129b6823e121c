package taskrt

import (
	"sync"
	"time"

	"github.com/taskrt/taskrt/internal/task"
)

// sleepFuture is Ready once its deadline has passed. It arms a
// time.AfterFunc timer on its first Poll and installs the polling
// task's waker to fire when the timer does; a later Poll after the
// timer has already fired returns Ready immediately.
type sleepFuture struct {
	deadline time.Time

	mu      sync.Mutex
	armed   bool
	fired   bool
	timer   *time.Timer
	waker   *task.Waker
}

// Sleep returns a future that becomes Ready after d elapses.
func Sleep(ctx *Context, d time.Duration) Future[struct{}] {
	return SleepUntil(ctx, time.Now().Add(d))
}

// SleepUntil returns a future that becomes Ready at (or after) t.
func SleepUntil(ctx *Context, t time.Time) Future[struct{}] {
	return &sleepFuture{deadline: t}
}

func (s *sleepFuture) Poll(w *task.Waker) (struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fired {
		return struct{}{}, true
	}
	s.waker = w
	if !s.armed {
		s.armed = true
		d := time.Until(s.deadline)
		if d < 0 {
			d = 0
		}
		s.timer = time.AfterFunc(d, s.fire)
	}
	return struct{}{}, false
}

func (s *sleepFuture) fire() {
	s.mu.Lock()
	s.fired = true
	w := s.waker
	s.mu.Unlock()
	w.Wake()
}

// Drop implements task.Dropper: cancelling a Sleep future (its task is
// aborted, or it's composed inside Timeout and the inner future won the
// race) stops its underlying timer so it never fires spuriously.
func (s *sleepFuture) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// Interval fires repeatedly on a fixed period; Tick returns a future
// that resolves at each successive tick.
type Interval struct {
	period time.Time
	every  time.Duration
	ctx    *Context
}

// NewInterval builds an Interval that first fires one period from now.
func NewInterval(ctx *Context, period time.Duration) *Interval {
	return &Interval{period: time.Now().Add(period), every: period, ctx: ctx}
}

// Tick returns a future resolving at the interval's next scheduled
// firing, then advances the interval's schedule.
func (iv *Interval) Tick() Future[struct{}] {
	f := SleepUntil(iv.ctx, iv.period)
	iv.period = iv.period.Add(iv.every)
	return f
}

// timeoutFuture polls inner first; if inner isn't ready, it registers a
// Sleep for d and races the two, reporting whichever resolves first.
type timeoutFuture[T any] struct {
	inner Future[T]
	sleep *sleepFuture
	d     time.Duration
	armed bool
}

// Timeout composes fut with a deadline: the returned future resolves to
// Result{Value, TimedOut:false} if fut completes within d, or
// Result{TimedOut:true} if d elapses first. The internal Sleep is
// stopped on whichever branch wins, per spec.md §4.4's drop contract.
func Timeout[T any](ctx *Context, d time.Duration, fut Future[T]) Future[Result[T]] {
	return &timeoutFuture[T]{inner: fut, d: d}
}

func (t *timeoutFuture[T]) Poll(w *task.Waker) (Result[T], bool) {
	if v, ready := t.inner.Poll(w); ready {
		if t.sleep != nil {
			t.sleep.Drop()
		}
		return Result[T]{Value: v}, true
	}
	if !t.armed {
		t.armed = true
		t.sleep = &sleepFuture{deadline: time.Now().Add(t.d)}
	}
	if _, ready := t.sleep.Poll(w); ready {
		var zero T
		return Result[T]{Value: zero, TimedOut: true}, true
	}
	return Result[T]{}, false
}

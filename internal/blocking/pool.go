// Package blocking implements the elastic blocking thread pool from
// spec.md §4.6: a single shared FIFO feeding on-demand OS threads that
// retire themselves after sitting idle past a configured timeout.
//
// Structurally this mirrors the teacher's internal/concurrent.workerPool
// (dispatcher goroutine + readyWorkers handoff channel + idle-timeout
// reaper), generalized so a submitted job returns a typed result through
// a JoinHandle instead of firing a bare completion callback.
package blocking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/taskrt/taskrt/internal/rtlog"
	"github.com/taskrt/taskrt/internal/rtmetrics"
)

const (
	readyWorkerQueueSize = 32
	jobsCapacity         = 8
	mustGetWorkerBackoff = 5 * time.Millisecond
)

// job is the type-erased unit of work the pool actually schedules;
// Submit wraps a typed func() (T, error) into one of these.
type job struct {
	id         string
	run        func() (any, error)
	resultSlot func(any, error)
	enqueuedAt time.Time
}

// Pool is the elastic blocking thread pool. One Pool is shared by every
// worker in the runtime (spec.md §4.6: "a single shared producer/
// consumer FIFO").
type Pool struct {
	name        string
	maxWorkers  int
	idleTimeout time.Duration

	jobs         chan *job
	readyWorkers chan *poolWorker
	stopDispatch chan struct{}
	dispatchDone chan struct{}

	alive   atomic.Int64
	stopped atomic.Bool

	log     rtlog.Logger
	metrics *rtmetrics.Runtime
}

// NewPool constructs a Pool and starts its dispatcher goroutine.
// maxWorkers is clamped to at least 1; idleTimeout to a positive value
// (defaulting to 5s, matching the teacher's default).
func NewPool(name string, maxWorkers int, idleTimeout time.Duration, m *rtmetrics.Runtime) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if idleTimeout <= 0 {
		idleTimeout = 5 * time.Second
	}
	p := &Pool{
		name:         name,
		maxWorkers:   maxWorkers,
		idleTimeout:  idleTimeout,
		jobs:         make(chan *job, jobsCapacity),
		readyWorkers: make(chan *poolWorker, readyWorkerQueueSize),
		stopDispatch: make(chan struct{}),
		dispatchDone: make(chan struct{}),
		log:          rtlog.GetLogger("BlockingPool", name),
		metrics:      m,
	}
	go p.dispatch()
	return p
}

// Submit runs fn on a pool worker and returns a JoinHandle for its
// result. If ctx is cancelled before the job is accepted onto the
// queue, it is dropped and the handle completes with ctx.Err().
func Submit[T any](p *Pool, ctx context.Context, fn func() (T, error)) *JoinHandle[T] {
	jh := newJoinHandle[T]()
	if p.Stopped() {
		jh.complete(*new(T), errPoolStopped)
		return jh
	}
	j := &job{
		id:         uuid.New().String(),
		enqueuedAt: time.Now(),
		run: func() (any, error) {
			v, err := fn()
			return v, err
		},
		resultSlot: func(v any, err error) {
			if err != nil {
				jh.complete(*new(T), err)
				return
			}
			jh.complete(v.(T), nil)
		},
	}
	select {
	case <-ctx.Done():
		jh.complete(*new(T), ctx.Err())
	case p.jobs <- j:
	}
	return jh
}

// Stopped reports whether Stop has been called.
func (p *Pool) Stopped() bool { return p.stopped.Load() }

// Stop stops the dispatcher, retires every live worker, then runs any
// jobs still queued to completion on the calling goroutine. Safe to
// call more than once.
func (p *Pool) Stop() {
	if p.stopped.Swap(true) {
		return
	}
	close(p.stopDispatch)
	<-p.dispatchDone
	p.stopWorkers()
	p.drainRemaining()
}

func (p *Pool) dispatch() {
	defer close(p.dispatchDone)
	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()
	for {
		idle.Reset(p.idleTimeout)
		select {
		case <-p.stopDispatch:
			return
		case j := <-p.jobs:
			w := p.mustGetWorker()
			w.execute(j)
		case <-idle.C:
			p.retireOneIdleWorker()
		}
	}
}

func (p *Pool) mustGetWorker() *poolWorker {
	for {
		select {
		case w := <-p.readyWorkers:
			return w
		default:
			if p.alive.Load() >= int64(p.maxWorkers) {
				time.Sleep(mustGetWorkerBackoff)
				continue
			}
			return p.spawnWorker()
		}
	}
}

func (p *Pool) spawnWorker() *poolWorker {
	w := &poolWorker{pool: p, jobs: make(chan *job), stop: make(chan struct{})}
	p.alive.Inc()
	if p.metrics != nil {
		p.metrics.BlockingWorkersAlive.Set(float64(p.alive.Load()))
		p.metrics.BlockingWorkersCreated.Inc()
	}
	go w.run()
	return w
}

func (p *Pool) retireOneIdleWorker() {
	if p.alive.Load() == 0 {
		return
	}
	select {
	case w := <-p.readyWorkers:
		w.retire()
	default:
	}
}

func (p *Pool) stopWorkers() {
	// Retire synchronously so alive is decremented before the loop
	// condition is checked again.
	for p.alive.Load() > 0 {
		w := <-p.readyWorkers
		w.retire()
	}
}

func (p *Pool) drainRemaining() {
	for {
		select {
		case j := <-p.jobs:
			p.runJob(j)
		default:
			return
		}
	}
}

func (p *Pool) runJob(j *job) {
	defer func() {
		if r := recover(); r != nil {
			if p.metrics != nil {
				p.metrics.BlockingTasksPanic.Inc()
			}
			err := fmt.Errorf("blocking job panicked: %v", r)
			p.log.Error("panic while executing blocking job", rtlog.Err(err), rtlog.String("job_id", j.id), rtlog.Stack())
			j.resultSlot(nil, err)
		}
	}()
	if p.metrics != nil {
		p.metrics.BlockingTasksWaitTime.Observe(time.Since(j.enqueuedAt).Seconds())
	}
	v, err := j.run()
	j.resultSlot(v, err)
}

type poolWorker struct {
	pool *Pool
	jobs chan *job
	stop chan struct{}
}

func (w *poolWorker) execute(j *job) { w.jobs <- j }

func (w *poolWorker) retire() {
	w.stop <- struct{}{}
	w.pool.alive.Dec()
	if w.pool.metrics != nil {
		w.pool.metrics.BlockingWorkersKilled.Inc()
		w.pool.metrics.BlockingWorkersAlive.Set(float64(w.pool.alive.Load()))
	}
}

func (w *poolWorker) run() {
	for {
		select {
		case <-w.stop:
			return
		case j := <-w.jobs:
			w.pool.runJob(j)
			w.pool.readyWorkers <- w
		}
	}
}

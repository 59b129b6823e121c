package taskrt

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/taskrt/taskrt/internal/blocking"
	"github.com/taskrt/taskrt/internal/reactor"
	"github.com/taskrt/taskrt/internal/rtlog"
	"github.com/taskrt/taskrt/internal/rtmetrics"
	"github.com/taskrt/taskrt/internal/task"
	"github.com/taskrt/taskrt/internal/worker"
)

// Runtime owns a fixed pool of worker threads, each with its own
// reactor and timer store, plus one shared elastic blocking pool.
type Runtime struct {
	cfg     RuntimeConfig
	disp    *worker.Dispatcher
	blocks  *blocking.Pool
	metrics *rtmetrics.Runtime
	log     rtlog.Logger

	nextRoundRobin int
}

// Build constructs and starts a Runtime: one OS thread per worker (each
// locked via runtime.LockOSThread, matching spec.md §5's "pinned to
// worker N" assumption), each backed by its own reactor where the
// platform provides one, and a shared blocking pool sized per config.
func Build(opts ...Option) (*Runtime, error) {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	m := rtmetrics.NewRuntime(nil)
	rt := &Runtime{cfg: cfg, metrics: m, log: rtlog.GetLogger("Runtime", "default")}

	workers := make([]*worker.Worker, cfg.WorkerThreads)
	for i := range workers {
		react, err := reactor.New(i, m)
		if err != nil {
			rt.log.Warn("reactor unavailable on this platform, worker will not observe I/O readiness",
				rtlog.Err(err))
			react = nil
		}
		w := worker.New(i, cfg.EventInterval, react, m)
		workers[i] = w
	}
	rt.disp = worker.NewDispatcher(workers, m)

	for _, w := range workers {
		w := w
		name := fmt.Sprintf("worker-%d", w.ID())
		if cfg.WorkerName != nil {
			name = cfg.WorkerName(w.ID())
		}
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			rt.log.Info("worker starting", zap.String("worker", name))
			w.Run()
		}()
	}

	rt.blocks = blocking.NewPool("default", cfg.MaxBlockingThreads, cfg.ThreadKeepAlive, m)

	return rt, nil
}

// Context returns a fresh Context rooted at context.Background(), used
// for top-level Spawn/Sleep calls outside any running task.
func (rt *Runtime) Context() *Context {
	return &Context{rt: rt, std: context.Background()}
}

// BlockOn runs fn as a pinned task on worker 0 (spec.md §6: "runs
// entry_fn on worker 0 as a pinned task, drives all workers until that
// task completes"), blocking the calling goroutine until it finishes,
// and returns whatever fn returns. Workers are already driving
// themselves independently since Build(); BlockOn's job is only to wait
// for the entry task specifically. A panic inside fn is re-raised here,
// matching spec.md §7's "block_on re-raises a panic from the entry
// task's completion."
func (rt *Runtime) BlockOn(fn func(ctx *Context) any) any {
	ctx := rt.Context()
	h := spawnPinned[any](rt, 0, task.FuncFuture[any]{Fn: func() any { return fn(ctx) }})
	v, err := h.Wait(context.Background())
	if err != nil {
		var je *JoinError
		if errors.As(err, &je) && je.Kind == JoinPanic {
			panic(je.Panic)
		}
		panic(err)
	}
	return v
}

// Shutdown stops every worker and the blocking pool, waiting up to
// timeout for in-flight work to finish before returning regardless.
func (rt *Runtime) Shutdown(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		rt.disp.Stop()
		rt.blocks.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		rt.log.Warn("shutdown timed out waiting for workers and blocking pool to drain")
	}
}

package taskrt

import (
	"github.com/taskrt/taskrt/internal/blocking"
	"github.com/taskrt/taskrt/internal/task"
	"github.com/taskrt/taskrt/internal/worker"
)

// Spawn places fut onto the least-loaded worker as a Sendable task.
func Spawn[T any](ctx *Context, fut Future[T]) *JoinHandle[T] {
	return spawnSendable(ctx.rt, fut)
}

// SpawnFunc wraps fn (which runs to completion on its first poll, never
// suspending) as a Sendable task.
func SpawnFunc[T any](ctx *Context, fn func() T) *JoinHandle[T] {
	return spawnSendable(ctx.rt, task.FuncFuture[T]{Fn: fn})
}

// SpawnPinnedAt runs fn on exactly the named worker for its entire
// lifetime.
func SpawnPinnedAt[T any](ctx *Context, workerID int, fn func() T) *JoinHandle[T] {
	return spawnPinned(ctx.rt, int32(workerID), task.FuncFuture[T]{Fn: fn})
}

// SpawnPinned runs fn on a single worker chosen round-robin from the
// runtime's pool, and keeps it there for its entire lifetime (there is
// no "currently running worker" concept for a caller outside a task;
// round-robin gives a deterministic, evenly-distributed pin target).
func SpawnPinned[T any](ctx *Context, fn func() T) *JoinHandle[T] {
	id := ctx.rt.nextPinTarget()
	return spawnPinned(ctx.rt, id, task.FuncFuture[T]{Fn: fn})
}

// SpawnLocal places fut directly on lctx's bound worker's local deque,
// skipping the shared queue entirely. lctx must already be bound (i.e.
// this call happens from within a task's Poll, using a LocalContext
// obtained via LocalAware embedded in that task's own future).
func SpawnLocal[T any](lctx *LocalContext, fut Future[T]) *JoinHandle[T] {
	w := lctx.worker()
	if w == nil {
		panic("taskrt: SpawnLocal called with an unbound LocalContext")
	}
	h := task.Spawn[T](task.Pinned, int32(w.ID()), w, fut)
	w.PushLocal(h)
	tjh := task.NewJoinHandle[T](h)
	return &JoinHandle[T]{inner: tjh, taskJH: tjh}
}

// SpawnBlocking runs fn on the runtime's shared blocking thread pool,
// for work that would otherwise block a worker thread (spec.md §4.6).
func SpawnBlocking[T any](ctx *Context, fn func() T) *JoinHandle[T] {
	bjh := blocking.Submit(ctx.rt.blocks, ctx.std, func() (T, error) {
		return fn(), nil
	})
	return &JoinHandle[T]{inner: bjh}
}

func spawnSendable[T any](rt *Runtime, fut Future[T]) *JoinHandle[T] {
	scheduler := rt.disp.LeastLoaded()
	h := task.Spawn[T](task.Sendable, -1, scheduler, fut)
	bindIfLocalAware(fut, scheduler)
	scheduler.Schedule(h)
	tjh := task.NewJoinHandle[T](h)
	return &JoinHandle[T]{inner: tjh, taskJH: tjh}
}

func spawnPinned[T any](rt *Runtime, workerID int32, fut Future[T]) *JoinHandle[T] {
	if workerID < 0 || int(workerID) >= rt.disp.Len() {
		panic("taskrt: pinned worker id out of range")
	}
	w := rt.disp.Workers()[workerID]
	h := task.Spawn[T](task.Pinned, workerID, w, fut)
	bindIfLocalAware(fut, w)
	rt.disp.SubmitPinned(h, nil)
	tjh := task.NewJoinHandle[T](h)
	return &JoinHandle[T]{inner: tjh, taskJH: tjh}
}

func bindIfLocalAware(fut any, w *worker.Worker) {
	if lb, ok := fut.(localBinder); ok {
		lb.bindLocal(w)
	}
}

func (rt *Runtime) nextPinTarget() int32 {
	n := int32(rt.disp.Len())
	id := int32(rt.nextRoundRobin) % n
	rt.nextRoundRobin++
	return id
}

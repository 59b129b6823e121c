package taskrt

import (
	stdcontext "context"

	"github.com/taskrt/taskrt/internal/reactor"
	"github.com/taskrt/taskrt/internal/worker"
)

// Context is the capability handed to spawn and sleep entry points: it
// carries the owning Runtime and a standard context.Context, which
// SpawnBlocking uses to abandon a submission that cannot be queued and
// which Std exposes for callers to pass to JoinHandle.Wait.
type Context struct {
	rt  *Runtime
	std stdcontext.Context
}

// Std returns the underlying standard-library context.
func (c *Context) Std() stdcontext.Context { return c.std }

// WithStd returns a copy of c using std for cancellation instead.
func (c *Context) WithStd(std stdcontext.Context) *Context {
	return &Context{rt: c.rt, std: std}
}

// IOReactor returns the reactor used to drive all reactor-backed I/O
// wrappers (see taskrt/rtnet). Every I/O resource in a Runtime is
// registered against this single reactor, which is always the first
// worker's, regardless of which worker happens to be polling the task
// that owns the resource: readiness dispatch only needs one thread
// calling epoll_wait on a given epoll instance, not an instance per
// worker that actually touches the socket.
func (c *Context) IOReactor() *reactor.Reactor {
	return c.rt.disp.Workers()[0].Reactor()
}

// Local returns a new LocalContext that is not bound to any worker, and
// nothing binds it later: SpawnLocal panics when given it. A bound
// LocalContext comes from LocalAware.Local, inside a future that embeds
// LocalAware and has been spawned.
func (c *Context) Local() *LocalContext {
	return &LocalContext{}
}

// LocalContext grants the ability to spawn a task directly onto the
// same worker that is currently running the caller, bypassing the
// shared queue entirely. It starts unbound; the runtime binds it to a
// concrete worker at placement time, before the owning task is ever
// polled.
type LocalContext struct {
	w *worker.Worker
}

func (lc *LocalContext) bind(w *worker.Worker) { lc.w = w }

func (lc *LocalContext) worker() *worker.Worker { return lc.w }

// localBinder is implemented by a Future that embeds LocalAware; Spawn
// calls bindLocal immediately after choosing a worker, strictly before
// that worker ever polls the task.
type localBinder interface {
	bindLocal(w *worker.Worker)
}

// LocalAware is an optional mixin for a Future[T] implementation that
// wants a LocalContext bound to whichever worker ends up running it.
// Embed it, then call Local() from within Poll to get the bound
// LocalContext (valid from the first Poll call onward).
type LocalAware struct {
	lc LocalContext
}

// Local returns this future's LocalContext, bound to its owning worker
// from the first Poll call onward.
func (la *LocalAware) Local() *LocalContext { return &la.lc }

func (la *LocalAware) bindLocal(w *worker.Worker) { la.lc.bind(w) }

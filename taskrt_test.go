package taskrt_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskrt/taskrt"
)

// yieldOnceFuture wakes itself during its first poll (a cooperative
// yield per spec.md §4.1's YIELD phase) and resolves to value on the
// second poll, so the worker loop re-enqueues it to the back of the
// local deque exactly once.
type yieldOnceFuture struct {
	value  int
	yielded bool
}

func (f *yieldOnceFuture) Poll(w *taskrt.Waker) (int, bool) {
	if !f.yielded {
		f.yielded = true
		w.Wake()
		return 0, false
	}
	return f.value, true
}

// S1 — Spawn many local: one worker, 1000 tasks that each yield once
// then return 2; every result observed is 2.
func TestS1SpawnManyLocal(t *testing.T) {
	rt, err := taskrt.Build(taskrt.WithWorkerThreads(1))
	require.NoError(t, err)
	defer rt.Shutdown(5 * time.Second)

	ctx := rt.Context()
	const n = 1000
	handles := make([]*taskrt.JoinHandle[int], n)
	for i := 0; i < n; i++ {
		handles[i] = taskrt.Spawn[int](ctx, &yieldOnceFuture{value: 2})
	}
	for i, h := range handles {
		v, err := h.Wait(context.Background())
		require.NoErrorf(t, err, "task %d", i)
		require.Equalf(t, 2, v, "task %d", i)
	}
}

// S2 — Cross-thread submission: 4 workers, 10,000 sendable tasks each
// incrementing a shared counter; all completions observed exactly once.
func TestS2CrossThreadSubmission(t *testing.T) {
	rt, err := taskrt.Build(taskrt.WithWorkerThreads(4))
	require.NoError(t, err)
	defer rt.Shutdown(10 * time.Second)

	ctx := rt.Context()
	const n = 10000
	var counter atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		h := taskrt.SpawnFunc[struct{}](ctx, func() struct{} {
			counter.Add(1)
			return struct{}{}
		})
		go func(h *taskrt.JoinHandle[struct{}]) {
			defer wg.Done()
			_, err := h.Wait(context.Background())
			require.NoError(t, err)
		}(h)
	}
	wg.Wait()
	require.Equal(t, int64(n), counter.Load())
}

// S3 — Timeout fires: timeout(50ms, sleep(60s)) resolves TimedOut in
// [50ms, 200ms).
func TestS3TimeoutFires(t *testing.T) {
	rt, err := taskrt.Build(taskrt.WithWorkerThreads(1))
	require.NoError(t, err)
	defer rt.Shutdown(5 * time.Second)

	ctx := rt.Context()
	start := time.Now()
	h := taskrt.Spawn[taskrt.Result[struct{}]](ctx,
		taskrt.Timeout(ctx, 50*time.Millisecond, taskrt.Sleep(ctx, 60*time.Second)))
	res, err := h.Wait(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.True(t, res.TimedOut)
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Less(t, elapsed, 200*time.Millisecond)
}

// S4 — Abort while sleeping: aborting a task parked in Sleep(100s)
// after 10ms returns Cancelled within 50ms.
func TestS4AbortWhileSleeping(t *testing.T) {
	rt, err := taskrt.Build(taskrt.WithWorkerThreads(1))
	require.NoError(t, err)
	defer rt.Shutdown(5 * time.Second)

	ctx := rt.Context()
	h := taskrt.Spawn[struct{}](ctx, taskrt.Sleep(ctx, 100*time.Second))

	time.Sleep(10 * time.Millisecond)
	start := time.Now()
	h.Abort()

	_, err = h.Wait(context.Background())
	elapsed := time.Since(start)
	require.Error(t, err)
	var je *taskrt.JoinError
	require.True(t, errors.As(err, &je))
	require.Equal(t, taskrt.JoinCancelled, je.Kind)
	require.Less(t, elapsed, 50*time.Millisecond)
}

// Abort is idempotent: calling it twice behaves like calling it once.
func TestAbortIsIdempotent(t *testing.T) {
	rt, err := taskrt.Build(taskrt.WithWorkerThreads(1))
	require.NoError(t, err)
	defer rt.Shutdown(5 * time.Second)

	ctx := rt.Context()
	h := taskrt.Spawn[struct{}](ctx, taskrt.Sleep(ctx, 10*time.Second))
	h.Abort()
	h.Abort()
	_, err = h.Wait(context.Background())
	require.Error(t, err)
}

// spawn(fn).await == fn() for a pure, panic-free fn.
func TestSpawnRoundTrip(t *testing.T) {
	rt, err := taskrt.Build(taskrt.WithWorkerThreads(2))
	require.NoError(t, err)
	defer rt.Shutdown(5 * time.Second)

	ctx := rt.Context()
	fn := func() int { return 7 * 6 }
	h := taskrt.SpawnFunc[int](ctx, fn)
	v, err := h.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, fn(), v)
}

// spawn_pinned_at(i, f) always runs f on worker i.
func TestSpawnPinnedAtRunsOnNamedWorker(t *testing.T) {
	rt, err := taskrt.Build(taskrt.WithWorkerThreads(3))
	require.NoError(t, err)
	defer rt.Shutdown(5 * time.Second)

	ctx := rt.Context()
	for id := 0; id < 3; id++ {
		h := taskrt.SpawnPinnedAt[int](ctx, id, func() int { return id })
		v, err := h.Wait(context.Background())
		require.NoError(t, err)
		require.Equal(t, id, v)
	}
}

// S6 — Blocking pool elasticity: 256 jobs sleeping 20ms each on a pool
// capped at 64 workers all complete, each with its own result.
func TestS6BlockingPoolElasticity(t *testing.T) {
	rt, err := taskrt.Build(
		taskrt.WithWorkerThreads(2),
		taskrt.WithMaxBlockingThreads(64),
		taskrt.WithThreadTimeout(100*time.Millisecond),
	)
	require.NoError(t, err)
	defer rt.Shutdown(15 * time.Second)

	ctx := rt.Context()
	const n = 256
	handles := make([]*taskrt.JoinHandle[int], n)
	for i := range handles {
		i := i
		handles[i] = taskrt.SpawnBlocking[int](ctx, func() int {
			time.Sleep(20 * time.Millisecond)
			return i
		})
	}
	for i, h := range handles {
		v, err := h.Wait(context.Background())
		require.NoErrorf(t, err, "job %d", i)
		require.Equal(t, i, v)
	}
}

// Dropping a JoinHandle without awaiting detaches the task: it keeps
// running to completion even though nothing observes its output.
func TestDetachLetsTaskRunToCompletion(t *testing.T) {
	rt, err := taskrt.Build(taskrt.WithWorkerThreads(1))
	require.NoError(t, err)
	defer rt.Shutdown(5 * time.Second)

	ctx := rt.Context()
	var ran atomic.Bool
	h := taskrt.SpawnFunc[struct{}](ctx, func() struct{} {
		ran.Store(true)
		return struct{}{}
	})
	h.Detach()
	require.Eventually(t, ran.Load, time.Second, time.Millisecond)
}

package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskrt/taskrt/internal/task"
)

func newTestWorkers(n int) []*Worker {
	ws := make([]*Worker, n)
	for i := range ws {
		ws[i] = New(i, 10, nil, nil)
	}
	return ws
}

func TestLeastLoadedPicksFirstMinimumOnTies(t *testing.T) {
	ws := newTestWorkers(3)
	d := NewDispatcher(ws, nil)

	require.Same(t, ws[0], d.LeastLoaded(), "all workers start at zero load; must pick index 0")

	ws[0].counter.IncreaseLocal()
	ws[1].counter.IncreaseLocal()
	require.Same(t, ws[2], d.LeastLoaded())
}

func TestSubmitPinnedFastPathGoesDirectlyToLocalDeque(t *testing.T) {
	ws := newTestWorkers(2)
	d := NewDispatcher(ws, nil)

	h := task.NewHeader(task.NextID(), task.Pinned, 1, ws[1], func(*task.Waker) (any, bool) { return nil, true }, nil)
	d.SubmitPinned(h, ws[1])

	require.Equal(t, 1, ws[1].local.Len())
	require.EqualValues(t, 0, ws[1].counter.Load().Shared)
}

func TestSubmitPinnedFromOtherWorkerGoesThroughSharedQueue(t *testing.T) {
	ws := newTestWorkers(2)
	d := NewDispatcher(ws, nil)

	h := task.NewHeader(task.NextID(), task.Pinned, 1, ws[1], func(*task.Waker) (any, bool) { return nil, true }, nil)
	d.SubmitPinned(h, ws[0])

	require.Equal(t, 0, ws[1].local.Len())
	require.EqualValues(t, 1, ws[1].counter.Load().Shared)
}

func TestSubmitSendableUsesLeastLoaded(t *testing.T) {
	ws := newTestWorkers(3)
	d := NewDispatcher(ws, nil)
	ws[0].counter.IncreaseLocal()
	ws[1].counter.IncreaseLocal()

	h := task.NewHeader(task.NextID(), task.Sendable, -1, noopScheduler{}, func(*task.Waker) (any, bool) { return nil, true }, nil)
	d.SubmitSendable(h)

	require.EqualValues(t, 1, ws[2].counter.Load().Shared)
}

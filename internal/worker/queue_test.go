package worker

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskrt/taskrt/internal/task"
)

func header(id uint64) *task.Header {
	return task.NewHeader(id, task.Sendable, -1, noopScheduler{}, func(w *task.Waker) (any, bool) {
		return nil, true
	}, nil)
}

type noopScheduler struct{}

func (noopScheduler) Schedule(*task.Header) {}

func TestLocalQueueFIFOOrder(t *testing.T) {
	q := newLocalQueue(4)
	a, b, c := header(1), header(2), header(3)
	q.PushBack(a)
	q.PushBack(b)
	q.PushBack(c)

	got, ok := q.PopFront()
	require.True(t, ok)
	require.Same(t, a, got)

	got, ok = q.PopFront()
	require.True(t, ok)
	require.Same(t, b, got)

	require.Equal(t, 1, q.Len())
}

func TestLocalQueueEmptyPop(t *testing.T) {
	q := newLocalQueue(4)
	_, ok := q.PopFront()
	require.False(t, ok)
	require.True(t, q.IsEmpty())
}

func TestSharedQueuePopNRespectsAvailableCount(t *testing.T) {
	q := newSharedQueue()
	for i := 0; i < 5; i++ {
		q.Push(header(uint64(i)))
	}
	batch := q.PopN(3)
	require.Len(t, batch, 3)

	rest := q.PopN(10)
	require.Len(t, rest, 2)

	require.Empty(t, q.PopN(1))
}

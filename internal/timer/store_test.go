package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskrt/taskrt/internal/task"
)

func TestFetchFiresDueEntriesInDeadlineOrder(t *testing.T) {
	s := New()
	base := time.Unix(1000, 0)

	var fired []int
	mk := func(i int, d time.Duration) {
		h := s.SleepAt(base.Add(d))
		s.InstallWaker(h, task.NewWaker(func() { fired = append(fired, i) }))
	}
	mk(2, 30*time.Millisecond)
	mk(0, 10*time.Millisecond)
	mk(1, 20*time.Millisecond)

	require.Equal(t, 3, s.Len())
	n := s.Fetch(base.Add(25 * time.Millisecond))
	require.Equal(t, 2, n)
	require.Equal(t, []int{0, 1}, fired)
	require.Equal(t, 1, s.Len())
}

func TestNextTimeoutClampsToZeroWhenDue(t *testing.T) {
	s := New()
	now := time.Unix(2000, 0)
	s.SleepAt(now.Add(-5 * time.Millisecond))
	require.Equal(t, time.Duration(0), s.NextTimeout(now))
}

func TestNextTimeoutNegativeWhenEmpty(t *testing.T) {
	s := New()
	require.Less(t, s.NextTimeout(time.Now()), time.Duration(0))
}

func TestResetMovesDeadline(t *testing.T) {
	s := New()
	base := time.Unix(3000, 0)
	h := s.SleepAt(base.Add(100 * time.Millisecond))
	h = s.Reset(h, base.Add(5*time.Millisecond))

	n := s.Fetch(base.Add(10 * time.Millisecond))
	require.Equal(t, 1, n)
	require.True(t, h.Fired())
}

func TestCancelRemovesEntryBeforeItFires(t *testing.T) {
	s := New()
	base := time.Unix(4000, 0)
	woke := false
	h := s.SleepAt(base.Add(10 * time.Millisecond))
	s.InstallWaker(h, task.NewWaker(func() { woke = true }))
	s.Cancel(h)
	require.Equal(t, 0, s.Len())

	n := s.Fetch(base.Add(time.Hour))
	require.Equal(t, 0, n)
	require.False(t, woke)
	require.False(t, h.Fired())
}

func TestInstallWakerOnAlreadyFiredEntryWakesImmediately(t *testing.T) {
	s := New()
	base := time.Unix(5000, 0)
	h := s.SleepAt(base)
	s.Fetch(base)
	require.True(t, h.Fired())

	woke := false
	s.InstallWaker(h, task.NewWaker(func() { woke = true }))
	require.True(t, woke)
}

package blocking

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitRunsJobAndDeliversResult(t *testing.T) {
	p := NewPool("t", 4, 50*time.Millisecond, nil)
	defer p.Stop()

	jh := Submit(p, context.Background(), func() (int, error) { return 42, nil })
	v, err := jh.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestSubmitPropagatesJobError(t *testing.T) {
	p := NewPool("t", 4, 50*time.Millisecond, nil)
	defer p.Stop()

	boom := errors.New("boom")
	jh := Submit(p, context.Background(), func() (int, error) { return 0, boom })
	_, err := jh.Wait(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSubmitRecoversPanic(t *testing.T) {
	p := NewPool("t", 4, 50*time.Millisecond, nil)
	defer p.Stop()

	jh := Submit(p, context.Background(), func() (int, error) {
		panic("kaboom")
	})
	_, err := jh.Wait(context.Background())
	require.Error(t, err)
}

func TestPoolElasticityGrowsAndShrinks(t *testing.T) {
	const (
		jobs = 256
		max  = 64
	)
	p := NewPool("elastic", max, 20*time.Millisecond, nil)
	defer p.Stop()

	var completed int64
	handles := make([]*JoinHandle[int], jobs)
	for i := 0; i < jobs; i++ {
		handles[i] = Submit(p, context.Background(), func() (int, error) {
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&completed, 1)
			return 1, nil
		})
	}
	for _, h := range handles {
		_, err := h.Wait(context.Background())
		require.NoError(t, err)
	}
	require.EqualValues(t, jobs, atomic.LoadInt64(&completed))
	require.LessOrEqual(t, int(p.alive.Load()), max)

	require.Eventually(t, func() bool {
		return p.alive.Load() == 0
	}, 2*time.Second, 10*time.Millisecond, "idle workers should retire after the idle timeout")
}

func TestSubmitAfterStopFailsImmediately(t *testing.T) {
	p := NewPool("t", 2, 20*time.Millisecond, nil)
	p.Stop()

	jh := Submit(p, context.Background(), func() (int, error) { return 1, nil })
	_, err := jh.Wait(context.Background())
	require.ErrorIs(t, err, errPoolStopped)
}

func TestSubmitRespectsContextCancellationWhenQueueFull(t *testing.T) {
	p := NewPool("t", 1, time.Second, nil)
	defer p.Stop()

	block := make(chan struct{})
	// Occupy the single worker so nothing drains the jobs channel...
	Submit(p, context.Background(), func() (int, error) { <-block; return 0, nil })
	// ...then fill its buffer so a further send genuinely blocks. The
	// dispatcher takes one more job out of the buffer and holds it while
	// it waits for a free worker, hence one job beyond the capacity.
	for i := 0; i < jobsCapacity+1; i++ {
		Submit(p, context.Background(), func() (int, error) { <-block; return 0, nil })
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	jh := Submit(p, ctx, func() (int, error) { return 1, nil })
	_, err := jh.Wait(context.Background())
	require.ErrorIs(t, err, context.Canceled)

	close(block)
}

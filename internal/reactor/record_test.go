package reactor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taskrt/taskrt/internal/task"
)

func TestRecordMarkAndClearRoundTrip(t *testing.T) {
	rec := newRecord(3)
	require.False(t, rec.Readable())

	v0 := rec.Version()
	rec.markReadable()
	require.True(t, rec.Readable())
	require.NotEqual(t, v0, rec.Version())

	seen := rec.Version()
	ok := rec.ClearReadableIfVersionUnchanged(seen)
	require.True(t, ok)
	require.False(t, rec.Readable())
}

func TestClearFailsIfVersionMovedConcurrently(t *testing.T) {
	rec := newRecord(3)
	rec.markReadable()
	stale := rec.Version() - 1 // pretend we observed an older version

	ok := rec.ClearReadableIfVersionUnchanged(stale)
	require.False(t, ok, "a clear racing a fresh event must not silently drop the new readiness")
	require.True(t, rec.Readable())
}

func TestInstallAndTakeWaker(t *testing.T) {
	rec := newRecord(3)
	woke := false
	w := task.NewWaker(func() { woke = true })
	rec.InstallReadWaker(w)

	taken := rec.takeReadWaker()
	require.NotNil(t, taken)
	taken.Wake()
	require.True(t, woke)

	require.Nil(t, rec.takeReadWaker(), "a waker is consumed by one take")
}

func TestRegistryPutGetDelete(t *testing.T) {
	reg := NewRegistry()
	recs := make([]*Record, 0, 64)
	for i := 0; i < 64; i++ {
		r := newRecord(i)
		r.Token = uintptr(i + 1)
		reg.Put(r)
		recs = append(recs, r)
	}
	require.Equal(t, 64, reg.Len())

	got, ok := reg.Get(recs[10].Token)
	require.True(t, ok)
	require.Same(t, recs[10], got)

	reg.Delete(recs[10].Token)
	require.Equal(t, 63, reg.Len())
	_, ok = reg.Get(recs[10].Token)
	require.False(t, ok)
}

package flock

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// These tests share the process-wide Default() pool, so each one uses its
// own disjoint bookkeeping and cleans up after itself via Wait/Clear rather
// than assuming a freshly constructed pool.

func TestDefaultIsASingleton(t *testing.T) {
	require.Same(t, Default(), Default())
}

func TestPushAndWaitOnDefaultPool(t *testing.T) {
	var n atomic.Int64
	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		require.NoError(t, Push(func() {
			n.Add(1)
			wg.Done()
		}))
	}
	wg.Wait()
	require.NoError(t, Wait())
	require.Equal(t, int64(50), n.Load())
}

func TestSetActiveThreadsOnDefaultPool(t *testing.T) {
	orig := Default().NumWorkers()
	SetActiveThreads(1)
	defer SetActiveThreads(orig)

	var n atomic.Int64
	var wg sync.WaitGroup
	wg.Add(10)
	for i := 0; i < 10; i++ {
		require.NoError(t, Push(func() {
			n.Add(1)
			wg.Done()
		}))
	}
	wg.Wait()
	require.NoError(t, Wait())
	require.Equal(t, int64(10), n.Load())
}

func TestClearOnDefaultPoolDiscardsUnstartedTasks(t *testing.T) {
	// after Wait nothing is queued, so Clear has nothing to discard; this
	// only exercises the free function's call path.
	require.NoError(t, Wait())
	Clear()
}

func TestAsyncDefaultReturnsTypedResult(t *testing.T) {
	fut := AsyncDefault(func() (string, error) {
		return "ok", nil
	})
	v, err := fut.Get()
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}

func TestParallelForDefaultCoversEveryIndex(t *testing.T) {
	const n = 137
	var mu sync.Mutex
	seen := make([]int, n)
	err := ParallelForDefault(0, n, 0, func(i int) {
		mu.Lock()
		seen[i]++
		mu.Unlock()
	})
	require.NoError(t, err)
	for i, c := range seen {
		require.Equal(t, 1, c, "index %d", i)
	}
}

func TestParallelForEachDefaultAppliesToEveryElement(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var sum atomic.Int64
	err := ParallelForEachDefault(items, func(v int) {
		sum.Add(int64(v))
	})
	require.NoError(t, err)
	require.Equal(t, int64(15), sum.Load())
}

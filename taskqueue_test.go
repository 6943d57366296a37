package flock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTaskQueuePushPopFIFO(t *testing.T) {
	q, err := newTaskQueue(4, 8)
	require.NoError(t, err)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		require.True(t, q.tryPush(func() { order = append(order, i) }))
	}

	for i := 0; i < 3; i++ {
		slot, ok := q.tryPop()
		require.True(t, ok)
		slot.task()
	}
	require.Equal(t, []int{0, 1, 2}, order)

	_, ok := q.tryPop()
	require.False(t, ok)
}

func TestTaskQueueGrowsPastInitialCapacity(t *testing.T) {
	q, err := newTaskQueue(1, 4)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.True(t, q.tryPush(func() {}))
	}
	require.Equal(t, int64(10), q.size())
	require.GreaterOrEqual(t, q.capacity(), int64(10))
}

func TestTaskQueueConcurrentStealersNeverDoubleDeliver(t *testing.T) {
	q, err := newTaskQueue(4, 32)
	require.NoError(t, err)

	const n = 500
	for i := 0; i < n; i++ {
		require.True(t, q.tryPush(func() {}))
	}

	var mu sync.Mutex
	seen := map[*taskSlot]bool{}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				slot, ok := q.tryPop()
				if !ok {
					return
				}
				mu.Lock()
				if seen[slot] {
					t.Error("slot delivered twice")
				}
				seen[slot] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, n)
}

func TestTaskQueueClearDiscardsQueued(t *testing.T) {
	q, err := newTaskQueue(8, 8)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.True(t, q.tryPush(func() {}))
	}
	q.clear()
	require.True(t, q.empty())
}

func TestTaskQueueResetReusesQueue(t *testing.T) {
	q, err := newTaskQueue(4, 4)
	require.NoError(t, err)

	require.True(t, q.tryPush(func() {}))
	q.stop()
	q.reset()

	require.False(t, q.stopped)
	require.True(t, q.empty())
	require.True(t, q.tryPush(func() {}))
}

// TestTaskQueueRapidFIFOModel checks that, absent concurrent stealers, a
// single-threaded sequence of pushes and pops matches a plain FIFO model:
// with only one popper, tryPop always drains in push order.
func TestTaskQueueRapidFIFOModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q, err := newTaskQueue(1, 4)
		require.NoError(t, err)

		var model []int
		var popped []int
		next := 0

		t.Repeat(map[string]func(*rapid.T){
			"push": func(t *rapid.T) {
				v := next
				next++
				require.True(t, q.tryPush(func() { popped = append(popped, v) }))
				model = append(model, v)
			},
			"pop": func(t *rapid.T) {
				if len(model) == 0 {
					_, ok := q.tryPop()
					require.False(t, ok)
					return
				}
				expected := model[0]
				model = model[1:]
				slot, ok := q.tryPop()
				require.True(t, ok)
				slot.task()
				require.Equal(t, expected, popped[len(popped)-1])
			},
			"": func(t *rapid.T) {
				require.Equal(t, int64(len(model)), q.size())
				require.Equal(t, len(model) == 0, q.empty())
			},
		})
	})
}

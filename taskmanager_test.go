package flock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTaskManagerPushRoundRobinsAcrossShards(t *testing.T) {
	m, err := newTaskManager(4, 4, 8, 8)
	require.NoError(t, err)

	for i := 0; i < 16; i++ {
		require.NoError(t, m.push(func() {}))
	}

	var total int64
	for _, q := range m.queues {
		require.Equal(t, int64(4), q.size())
		total += q.size()
	}
	require.Equal(t, int64(16), total)
}

func TestTaskManagerTryPopStealsFromOtherShards(t *testing.T) {
	m, err := newTaskManager(4, 4, 8, 8)
	require.NoError(t, err)

	ran := false
	require.True(t, m.queues[2].tryPush(func() { ran = true }))

	slot, ok := m.tryPop(0)
	require.True(t, ok)
	slot.task()
	require.True(t, ran)
}

func TestTaskManagerReportFailThenRecover(t *testing.T) {
	m, err := newTaskManager(2, 1, 8, 8)
	require.NoError(t, err)
	m.setActive(1)

	// the one active worker parks on its shard, counting toward the
	// all-idle threshold a concurrent recovery waits on
	parked := make(chan struct{})
	go func() {
		close(parked)
		m.waitForJobs(0)
	}()
	<-parked
	time.Sleep(10 * time.Millisecond)

	m.reportFail(errInjected)

	err2 := m.waitForFinish(0)
	require.Equal(t, errInjected, err2)
	require.False(t, m.stopped())

	// a later, unrelated push no longer observes the already-delivered error
	require.NoError(t, m.push(func() {}))
}

var errInjected = &TaskError{Value: "injected"}

func TestTaskManagerStopUnblocksWaiters(t *testing.T) {
	m, err := newTaskManager(2, 2, 8, 8)
	require.NoError(t, err)

	done := make(chan error, 1)
	m.todo.Add(1)
	go func() {
		done <- m.waitForFinish(0)
	}()

	time.Sleep(10 * time.Millisecond)
	m.stop()

	select {
	case e := <-done:
		require.NoError(t, e)
	case <-time.After(time.Second):
		t.Fatal("waitForFinish never returned after stop")
	}
}

package flock

import (
	"sync"
	"sync/atomic"
	"time"
)

// managerStatus is the TaskManager's four-state status.
type managerStatus int32

const (
	statusRunning managerStatus = iota
	statusErrored
	statusRecovering
	statusStopped
)

// taskManager owns an array of shards, round-robins pushes across them,
// implements the work-stealing poll on pop, and drives the error state
// machine: running -> errored (on first task panic) -> running again
// (once every worker has parked and the pool has been drained and
// reset).
//
// Go has no stable thread identity, so recovery is owned by whichever
// goroutine's Push or Wait call wins a CAS out of errored, rather than
// by a designated owner thread. Exactly one captured panic is still
// surfaced exactly once, and the reset still happens at exactly one
// point before the pool is usable again.
type taskManager struct {
	queues []*taskQueue

	_       cacheLinePad
	pushIdx uint64 // atomic
	_       cacheLinePad
	waiting int64 // atomic, count of parked workers
	_       cacheLinePad
	active  int64 // atomic, number of currently-polled shards (<= len(queues))
	_       cacheLinePad
	stolen  int64 // atomic, count of pops satisfied by a shard other than home

	// numWorkers is the fixed count of worker goroutines the pool started
	// with, immutable for the manager's lifetime. drainAndReset gates
	// recovery on this rather than on numActive(), since SetActiveThreads
	// can move the active shard count above or below the number of
	// goroutines actually polling: gating on numActive() after a shrink
	// would let recovery proceed while workers parked outside the active
	// range are still mid-task, and gating on numActive() after a grow
	// past numWorkers could never be satisfied at all.
	numWorkers int64

	todo   *TodoList
	status atomic.Int32

	errMu   sync.Mutex
	errCond *sync.Cond
	err     error
}

func newTaskManager(numQueues, numWorkers int, initialCapacity int64, blockSize int) (*taskManager, error) {
	m := &taskManager{
		queues:     make([]*taskQueue, numQueues),
		todo:       NewTodoList(0),
		active:     int64(numQueues),
		numWorkers: int64(numWorkers),
	}
	m.errCond = sync.NewCond(&m.errMu)
	for i := range m.queues {
		q, err := newTaskQueue(initialCapacity, blockSize)
		if err != nil {
			return nil, err
		}
		m.queues[i] = q
	}
	return m, nil
}

func (m *taskManager) numActive() int {
	return int(atomic.LoadInt64(&m.active))
}

func (m *taskManager) setActive(k int) {
	atomic.StoreInt64(&m.active, int64(k))
}

// push adds one task to the manager. It first drains any pending error
// recovery (surfacing the captured panic to whichever caller gets there
// first), then round-robins across the active shards until one accepts.
func (m *taskManager) push(task func()) error {
	if err := m.maybeRecover(); err != nil {
		return err
	}

	m.todo.Add(1)
	for {
		st := managerStatus(m.status.Load())
		if st == statusStopped {
			m.todo.Cross(1)
			return ErrPoolStopped
		}
		if st != statusRunning {
			if err := m.maybeRecover(); err != nil {
				m.todo.Cross(1)
				return err
			}
			continue
		}

		n := m.numActive()
		idx := atomic.AddUint64(&m.pushIdx, 1)
		q := m.queues[int(idx%uint64(n))]
		if q.tryPush(task) {
			return nil
		}
	}
}

// tryPop attempts to find work for worker home, consulting its home shard
// first, then neighbours mod the active shard count; the wrap to N+1
// attempts consults the home shard twice, absorbing self-contention
// windows exactly as the design specifies.
func (m *taskManager) tryPop(home int) (*taskSlot, bool) {
	if managerStatus(m.status.Load()) != statusRunning {
		return nil, false
	}
	n := m.numActive()
	if n == 0 {
		return nil, false
	}
	for k := 0; k <= n; k++ {
		idx := (home + k) % n
		if slot, ok := m.queues[idx].tryPop(); ok {
			if idx != home {
				atomic.AddInt64(&m.stolen, 1)
			}
			return slot, true
		}
	}
	return nil, false
}

// stolenCount reports the lifetime number of pops satisfied by a shard
// other than the caller's home shard.
func (m *taskManager) stolenCount() int64 {
	return atomic.LoadInt64(&m.stolen)
}

// waitForJobs parks worker home on its shard's condition variable. It
// also counts the worker toward the all-workers-idle threshold that a
// concurrent recovery's drainAndReset waits on; m.waiting is only ever
// touched under errMu, even though most of the time no recovery is in
// progress to observe it.
func (m *taskManager) waitForJobs(home int) {
	m.errMu.Lock()
	m.waiting++
	if m.waiting == atomic.LoadInt64(&m.numWorkers) {
		m.errCond.Broadcast()
	}
	m.errMu.Unlock()

	m.queues[home].wait()

	m.errMu.Lock()
	m.waiting--
	m.errMu.Unlock()
}

// done reports whether the manager's todo list looks empty.
func (m *taskManager) done() bool {
	return m.todo.Empty()
}

func (m *taskManager) reportSuccess() {
	m.todo.Cross(1)
}

// reportFail stores the first panic captured, flips status to errored,
// and stops the todo list so every waiter (including a concurrent
// WaitForFinish) unblocks with the error. Only the first panic wins; a
// second concurrent failure during the drain is dropped.
//
// m.waiting is deliberately left untouched here: it already accurately
// counts every worker currently parked in waitForJobs, whether it parked
// before this failure (still idle, still safe to count) or parks only
// after (once its current task returns and tryPop starts failing due to
// the new status). Resetting it would discard workers that parked
// earlier and will never call waitForJobs again to be re-counted,
// deadlocking drainAndReset's wait for every worker goroutine to go idle.
func (m *taskManager) reportFail(err error) {
	if managerStatus(m.status.Load()) != statusRunning {
		return
	}
	m.errMu.Lock()
	if managerStatus(m.status.Load()) != statusRunning {
		m.errMu.Unlock()
		return
	}
	m.err = err
	m.status.Store(int32(statusErrored))
	m.errMu.Unlock()
	m.todo.Stop(err)
}

// waitForFinish blocks until the todo list drains or an error surfaces,
// performing recovery itself if the error surfaces while it was parked
// (rather than having been already flagged when it started).
//
// A single task failure can wake every goroutine concurrently blocked in
// todo.Wait at once, all with the same error value. Only whichever of
// them wins finishRecovery's CAS actually owns that error; the rest must
// not re-surface it, or the "surfaced exactly once" guarantee breaks.
func (m *taskManager) waitForFinish(d time.Duration) error {
	if err := m.maybeRecover(); err != nil {
		return err
	}
	if managerStatus(m.status.Load()) == statusRunning {
		if err := m.todo.Wait(d); err != nil {
			if won, recovered := m.finishRecovery(err); won {
				return recovered
			}
			return nil
		}
	}
	return nil
}

// maybeRecover performs the errored -> recovering -> running transition
// exactly once per error, returning the captured error to whichever
// caller wins the CAS. Callers that lose the CAS get a nil error and
// simply proceed as though the status had already been running.
func (m *taskManager) maybeRecover() error {
	if managerStatus(m.status.Load()) != statusErrored {
		return nil
	}
	if !m.status.CompareAndSwap(int32(statusErrored), int32(statusRecovering)) {
		return nil
	}
	return m.drainAndReset(m.err)
}

// finishRecovery is the counterpart called by a WaitForFinish caller that
// received its error directly from TodoList.Wait rather than from the
// pre-check above. It reports won=true only to whichever caller actually
// wins the CAS and performs the drain; every other caller observing the
// same error from the same broadcast gets won=false and must not
// re-surface it.
func (m *taskManager) finishRecovery(err error) (won bool, recovered error) {
	if !m.status.CompareAndSwap(int32(statusErrored), int32(statusRecovering)) {
		return false, nil
	}
	return true, m.drainAndReset(err)
}

func (m *taskManager) drainAndReset(err error) error {
	m.errMu.Lock()
	for m.waiting < atomic.LoadInt64(&m.numWorkers) {
		m.errCond.Wait()
	}
	m.errMu.Unlock()

	m.todo.Reset()
	for _, q := range m.queues {
		q.reset()
	}
	m.err = nil
	m.status.Store(int32(statusRunning))
	return err
}

func (m *taskManager) clear() {
	for _, q := range m.queues {
		q.clear()
	}
}

func (m *taskManager) stop() {
	m.status.Store(int32(statusStopped))
	m.todo.Stop(nil)
	for _, q := range m.queues {
		q.stop()
	}
}

func (m *taskManager) stopped() bool {
	return managerStatus(m.status.Load()) == statusStopped
}

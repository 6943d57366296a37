package flock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// poolState represents the pool's lifecycle state, distinct from the
// taskManager's internal error state machine.
type poolState int32

const (
	poolRunning poolState = iota
	poolStopped
)

// ThreadPool is a fixed set of worker goroutines draining a sharded,
// work-stealing task manager. Each worker has a home shard; an idle
// worker first checks its own shard, then polls its neighbours before
// parking.
//
// A ThreadPool with zero workers still accepts Push calls: tasks run
// synchronously on the caller's goroutine, which is useful for tests and
// for code that wants a single code path regardless of concurrency.
//
// Example:
//
//	pool, err := flock.NewThreadPool(flock.WithNumWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown()
//
//	pool.Push(func() {
//	    fmt.Println("task executed")
//	})
//	pool.Wait()
type ThreadPool struct {
	cfg Config

	mgr *taskManager

	state   atomic.Int32
	wg      sync.WaitGroup
	started bool

	workerStats []workerCounters

	_              cacheLinePad
	helperExecuted uint64 // atomic
	helperFailed   uint64 // atomic
	_              cacheLinePad

	_              cacheLinePad
	latencyTotalNs uint64 // atomic, sum of every completed task's runtime
	latencyMaxNs   uint64 // atomic
	latencySamples uint64 // atomic, count backing latencyTotalNs
	_              cacheLinePad
}

// workerCounters are a single worker's lifetime task counters, padded to
// avoid false sharing between adjacent workers' cache lines.
type workerCounters struct {
	_             cacheLinePad
	tasksExecuted uint64 // atomic
	tasksFailed   uint64 // atomic
	_             cacheLinePad
}

// NewThreadPool constructs a ThreadPool from the given options. It returns
// an error if the resulting configuration fails validation.
func NewThreadPool(opts ...Option) (*ThreadPool, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	numShards := cfg.MaxActiveWorkers
	if numShards < 1 {
		numShards = 1
	}

	mgr, err := newTaskManager(numShards, cfg.NumWorkers, cfg.QueueCapacity, cfg.BlockSize)
	if err != nil {
		return nil, err
	}

	p := &ThreadPool{cfg: cfg, mgr: mgr, workerStats: make([]workerCounters, numShards)}

	if cfg.NumWorkers > 0 {
		mgr.setActive(cfg.NumWorkers)
		p.started = true
		for i := 0; i < cfg.NumWorkers; i++ {
			p.wg.Add(1)
			go p.runWorker(i)
		}
	} else {
		mgr.setActive(1)
	}

	return p, nil
}

// runWorker is the main loop for worker id. It mirrors the
// find-task/execute/park cycle of a conventional work-stealing pool,
// generalized here across a sharded TaskManager instead of a single
// deque plus an MPSC inbox.
func (p *ThreadPool) runWorker(id int) {
	defer p.wg.Done()

	if p.cfg.OnWorkerStart != nil {
		p.cfg.OnWorkerStart(id)
	}

	for {
		if poolState(p.state.Load()) == poolStopped {
			return
		}

		slot, ok := p.mgr.tryPop(id)
		if !ok {
			if poolState(p.state.Load()) == poolStopped {
				return
			}
			p.mgr.waitForJobs(id)
			continue
		}

		p.executeSafely(id, slot)
	}
}

// runSlot runs one task slot, recovering any panic and routing the outcome
// to the TaskManager's bookkeeping. A failed task never crosses off the
// todo list via reportSuccess; the TaskManager's own Stop(err) handles
// unblocking waiters for a failure.
func (p *ThreadPool) runSlot(slot *taskSlot) (panicked bool) {
	start := time.Now()
	recovered, panicked := slot.invoke()
	p.recordLatency(time.Since(start))

	if !panicked {
		p.mgr.reportSuccess()
		return false
	}

	err := newTaskError(recovered)
	if p.cfg.PanicObserver != nil {
		p.cfg.PanicObserver(err)
	}
	p.mgr.reportFail(err)
	return true
}

// recordLatency folds one task's runtime into the pool's aggregate latency
// counters. These are kept as pool-wide sums rather than per-worker, since
// a single CAS loop for the max is already enough contention for a
// counter nobody polls on the hot path.
func (p *ThreadPool) recordLatency(d time.Duration) {
	ns := uint64(d)
	atomic.AddUint64(&p.latencyTotalNs, ns)
	atomic.AddUint64(&p.latencySamples, 1)
	for {
		cur := atomic.LoadUint64(&p.latencyMaxNs)
		if ns <= cur {
			return
		}
		if atomic.CompareAndSwapUint64(&p.latencyMaxNs, cur, ns) {
			return
		}
	}
}

// executeSafely runs slot as worker's own task, crediting the outcome to
// that worker's lifetime counters.
func (p *ThreadPool) executeSafely(worker int, slot *taskSlot) {
	panicked := p.runSlot(slot)
	atomic.AddUint64(&p.workerStats[worker].tasksExecuted, 1)
	if panicked {
		atomic.AddUint64(&p.workerStats[worker].tasksFailed, 1)
	}
}

// helpExecute runs slot on behalf of a goroutine that is not one of the
// pool's own workers (see helpUntilDone), crediting the outcome to the
// pool's aggregate helper counters instead of a per-worker slot.
func (p *ThreadPool) helpExecute(slot *taskSlot) {
	panicked := p.runSlot(slot)
	atomic.AddUint64(&p.helperExecuted, 1)
	if panicked {
		atomic.AddUint64(&p.helperFailed, 1)
	}
}

// helpUntilDone runs queued tasks from the pool's shards until fl reports
// done, instead of blocking idly. A call that is already running inside a
// task on p (ParallelFor invoked from within another task, for example)
// uses this so nested fan-out still makes progress even when every worker
// goroutine is simultaneously waiting the same way and none of them is
// otherwise free to drain the nested chunks.
func (p *ThreadPool) helpUntilDone(fl *FinishLine) error {
	for {
		if done, err := fl.Done(); done {
			return err
		}
		if slot, ok := p.mgr.tryPop(0); ok {
			p.helpExecute(slot)
			continue
		}
		if done, err := fl.waitBriefly(time.Millisecond); done {
			return err
		}
	}
}

// Push submits task for asynchronous execution. If the pool has zero
// workers, task runs synchronously on the calling goroutine instead.
//
// Push returns ErrNilTask if task is nil, ErrPoolStopped if the pool has
// been shut down, or a *TaskError carrying a panic captured from an
// earlier task if this call is the one that surfaces it. With zero
// workers, a panic in task itself is returned by this same call.
func (p *ThreadPool) Push(task func()) error {
	if task == nil {
		return ErrNilTask
	}
	if poolState(p.state.Load()) == poolStopped {
		return ErrPoolStopped
	}

	if !p.started {
		return p.runSync(task)
	}
	return p.mgr.push(task)
}

// runSync executes task immediately on the caller's goroutine, still
// routing it through the TaskManager's todo-list bookkeeping so that a
// zero-worker pool's Wait returns at once. A panic in task is returned
// directly by this call as a *TaskError; it is not stored for a later
// Push or Wait and never puts the pool in its errored state.
func (p *ThreadPool) runSync(task func()) error {
	if err := p.mgr.maybeRecover(); err != nil {
		return err
	}
	p.mgr.todo.Add(1)

	recovered, panicked := invokeRecover(task)

	p.mgr.todo.Cross(1)
	if !panicked {
		return nil
	}
	err := newTaskError(recovered)
	if p.cfg.PanicObserver != nil {
		p.cfg.PanicObserver(err)
	}
	return err
}

// invokeRecover runs fn, catching any panic rather than letting it
// propagate to the caller.
func invokeRecover(fn func()) (recovered any, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			recovered, panicked = r, true
		}
	}()
	fn()
	return nil, false
}

// PushContext behaves like Push, except the task body is skipped if ctx is
// already done by the time a worker runs it; the skipped task still counts
// as pushed until then, and then completes at once. It does not cancel a
// task already in flight.
func (p *ThreadPool) PushContext(ctx context.Context, task func()) error {
	if task == nil {
		return ErrNilTask
	}
	return p.Push(func() {
		select {
		case <-ctx.Done():
			return
		default:
			task()
		}
	})
}

// Wait blocks until every pushed task has completed, or returns
// immediately with a *TaskError if a task panicked and this call is the
// one that surfaces it.
func (p *ThreadPool) Wait() error {
	return p.mgr.waitForFinish(0)
}

// WaitTimeout behaves like Wait but gives up and returns nil after d if
// the pool has not finished, leaving outstanding tasks queued.
func (p *ThreadPool) WaitTimeout(d time.Duration) error {
	return p.mgr.waitForFinish(d)
}

// Clear discards every not-yet-started queued task. Tasks already
// running are left to complete. Clear does not affect the error state.
func (p *ThreadPool) Clear() {
	p.mgr.clear()
}

// Shutdown stops the pool and blocks until every worker goroutine has
// exited. Queued-but-not-started tasks are discarded; in-flight tasks
// run to completion. Shutdown is idempotent.
func (p *ThreadPool) Shutdown() {
	if !p.state.CompareAndSwap(int32(poolRunning), int32(poolStopped)) {
		return
	}
	p.mgr.stop()
	p.wg.Wait()

	if p.cfg.OnWorkerStop != nil {
		for i := 0; i < p.cfg.NumWorkers; i++ {
			p.cfg.OnWorkerStop(i)
		}
	}
}

// NumWorkers reports the number of worker goroutines the pool was
// constructed with.
func (p *ThreadPool) NumWorkers() int {
	return p.cfg.NumWorkers
}

// SetActiveThreads changes how many of the pool's preallocated shards are
// currently being polled by a worker and targeted by round-robin pushes,
// without tearing down or recreating any goroutine. k is clamped to
// [1, MaxActiveWorkers]. A worker whose home shard is outside the active
// range no longer polls that shard but still steals from the active shards;
// once it finds nothing it parks on its home shard, which receives no
// further pushes.
func (p *ThreadPool) SetActiveThreads(k int) {
	if k < 1 {
		k = 1
	}
	if k > p.cfg.MaxActiveWorkers {
		k = p.cfg.MaxActiveWorkers
	}
	p.mgr.setActive(k)
	for _, q := range p.mgr.queues {
		q.cond.Broadcast()
	}
}

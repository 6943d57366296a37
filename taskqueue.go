package flock

import (
	"sync"
	"sync/atomic"
)

// taskQueue is a single shard: a multi-producer/multi-consumer queue built
// on an unbounded Chase-Lev-style ring buffer. Pops are lock-free; pushes
// are serialized by a try-lock so that a producer that loses the race on
// one shard fails fast and moves on to the next shard rather than
// blocking, which is what lets TaskManager spread contention across
// shards instead of queueing behind one.
type taskQueue struct {
	_   cacheLinePad
	top int64 // atomic, steal/pop end
	_   cacheLinePad

	bottom int64 // atomic, push end; mutated only while holding mu
	_      cacheLinePad

	buf       atomic.Pointer[ringBuffer]
	graveyard []*ringBuffer // superseded buffers, kept alive for concurrent readers; guarded by mu

	pool *mempool // slab allocator; allocate() only ever called under mu

	mu      sync.Mutex
	cond    *sync.Cond
	stopped bool
}

func newTaskQueue(initialCapacity int64, blockSize int) (*taskQueue, error) {
	rb, err := newRingBuffer(initialCapacity)
	if err != nil {
		return nil, err
	}
	q := &taskQueue{pool: newMempool(blockSize)}
	q.buf.Store(rb)
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// empty reports whether the shard currently looks empty. It is a snapshot
// and may be stale the instant it returns.
func (q *taskQueue) empty() bool {
	bottom := atomic.LoadInt64(&q.bottom)
	top := atomic.LoadInt64(&q.top)
	return bottom <= top
}

func (q *taskQueue) size() int64 {
	bottom := atomic.LoadInt64(&q.bottom)
	top := atomic.LoadInt64(&q.top)
	if bottom <= top {
		return 0
	}
	return bottom - top
}

func (q *taskQueue) capacity() int64 {
	return q.buf.Load().capacity
}

// tryPush publishes task at the bottom of the queue. It returns false,
// without blocking, if another producer currently holds the push lock.
// The caller is expected to retry on a different shard. The queue doubles
// its ring buffer when full; the superseded buffer is retained in the
// graveyard so that a concurrent stealer that already loaded the old
// pointer keeps reading valid memory.
func (q *taskQueue) tryPush(task func()) bool {
	if !q.mu.TryLock() {
		return false
	}
	defer q.mu.Unlock()

	if q.stopped {
		return false
	}

	b := atomic.LoadInt64(&q.bottom)
	t := atomic.LoadInt64(&q.top)
	buf := q.buf.Load()

	if buf.capacity < (b-t)+1 {
		old := buf
		buf = buf.enlargedCopy(b, t)
		q.graveyard = append(q.graveyard, old)
		q.buf.Store(buf)
	}

	slot := q.pool.allocate(task)
	buf.set(b, slot)

	// Publish the slot before publishing the new bottom: any popper that
	// observes the incremented bottom must also observe the slot write.
	atomic.StoreInt64(&q.bottom, b+1)

	q.cond.Signal()
	return true
}

// tryPop is lock-free. It returns the won slot and true on a winning CAS
// on top, or (nil, false) if the queue is empty or the race was lost to
// another popper.
func (q *taskQueue) tryPop() (*taskSlot, bool) {
	t := atomic.LoadInt64(&q.top)
	b := atomic.LoadInt64(&q.bottom)

	if t >= b {
		return nil, false
	}

	// The slot pointer must be loaded before the CAS: once the CAS
	// succeeds, this slot's storage may be reclaimed by the mempool at
	// any moment.
	buf := q.buf.Load()
	slot := buf.get(t)

	if atomic.CompareAndSwapInt64(&q.top, t, t+1) {
		return slot, true
	}
	return nil, false
}

// wait blocks until the shard looks non-empty or has been stopped.
func (q *taskQueue) wait() {
	q.mu.Lock()
	for q.empty() && !q.stopped {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// stop wakes every waiter parked on this shard; in-flight tasks are left
// to run to completion.
func (q *taskQueue) stop() {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// clear best-effort discards not-yet-started tasks by advancing top to
// bottom under the push lock. Concurrent stealers racing a clear() simply
// lose their CAS, exactly as if the tasks had been popped and run; no
// task is double-executed.
func (q *taskQueue) clear() {
	q.mu.Lock()
	b := atomic.LoadInt64(&q.bottom)
	atomic.StoreInt64(&q.top, b)
	q.mu.Unlock()
}

// reset returns the shard to its freshly-constructed state. Only safe to
// call once every worker is known to be idle (TaskManager enforces this).
func (q *taskQueue) reset() {
	q.mu.Lock()
	q.pool.reset()
	atomic.StoreInt64(&q.top, 0)
	atomic.StoreInt64(&q.bottom, 0)
	q.stopped = false
	q.mu.Unlock()
}

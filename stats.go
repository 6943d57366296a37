package flock

import (
	"sync/atomic"
	"time"
)

// Stats is a snapshot of a ThreadPool's operation, taken at the time
// Stats() is called. Counters are read without locking the hot path, so
// values may be slightly inconsistent under concurrent load.
type Stats struct {
	// NumWorkers is the number of worker goroutines currently started.
	NumWorkers int

	// ActiveShards is the number of shards currently being polled and
	// targeted by round-robin pushes; see SetActiveThreads.
	ActiveShards int

	// TasksExecuted is the total number of tasks that have finished
	// running across every worker, successful or panicked.
	TasksExecuted uint64

	// TasksFailed is the total number of tasks that panicked.
	TasksFailed uint64

	// Stolen is the number of pops that were satisfied by a shard other
	// than the polling worker's home shard.
	Stolen int64

	// LatencyAvg is the average time between a task slot being invoked
	// and it returning, across every worker and helper-drained task.
	LatencyAvg time.Duration

	// LatencyMax is the longest such time observed.
	LatencyMax time.Duration

	// TotalQueueDepth is the combined number of tasks currently queued
	// (not yet started) across every shard.
	TotalQueueDepth int64

	// TotalQueueCapacity is the combined ring buffer capacity across
	// every shard.
	TotalQueueCapacity int64

	// Errored reports whether the pool is currently in the errored
	// state, awaiting recovery by the next Push or Wait call.
	Errored bool

	// WorkerStats holds one entry per preallocated shard. Entries at
	// indices >= NumWorkers always report zero TasksExecuted and
	// TasksFailed, since no worker goroutine owns that shard; their queue
	// fields still describe the shard.
	WorkerStats []WorkerStats
}

// WorkerStats is a snapshot of a single worker's lifetime counters.
type WorkerStats struct {
	// WorkerID is this worker's index, matching its home shard.
	WorkerID int

	// TasksExecuted is the number of tasks this worker has run, whether
	// or not they panicked.
	TasksExecuted uint64

	// TasksFailed is the number of those tasks that panicked.
	TasksFailed uint64

	// QueueDepth is the number of tasks currently queued on this
	// worker's home shard.
	QueueDepth int64

	// QueueCapacity is this worker's shard's current ring buffer
	// capacity.
	QueueCapacity int64
}

// Stats returns a snapshot of the pool's current counters.
func (p *ThreadPool) Stats() Stats {
	active := p.mgr.numActive()
	st := managerStatus(p.mgr.status.Load())
	s := Stats{
		NumWorkers:   p.cfg.NumWorkers,
		ActiveShards: active,
		Errored:      st == statusErrored || st == statusRecovering,
		WorkerStats:  make([]WorkerStats, len(p.workerStats)),
	}

	for i := range p.workerStats {
		executed := atomic.LoadUint64(&p.workerStats[i].tasksExecuted)
		failed := atomic.LoadUint64(&p.workerStats[i].tasksFailed)
		s.TasksExecuted += executed
		s.TasksFailed += failed

		ws := WorkerStats{WorkerID: i, TasksExecuted: executed, TasksFailed: failed}
		if i < len(p.mgr.queues) {
			q := p.mgr.queues[i]
			ws.QueueDepth = q.size()
			ws.QueueCapacity = q.capacity()
			s.TotalQueueDepth += ws.QueueDepth
			s.TotalQueueCapacity += ws.QueueCapacity
		}
		s.WorkerStats[i] = ws
	}

	// Tasks run by a helper goroutine draining the pool while it waits on
	// a FinishLine (see helpUntilDone) aren't attributed to any worker's
	// own slot, but still count toward the pool's aggregate totals.
	s.TasksExecuted += atomic.LoadUint64(&p.helperExecuted)
	s.TasksFailed += atomic.LoadUint64(&p.helperFailed)

	s.Stolen = p.mgr.stolenCount()

	if samples := atomic.LoadUint64(&p.latencySamples); samples > 0 {
		total := atomic.LoadUint64(&p.latencyTotalNs)
		s.LatencyAvg = time.Duration(total / samples)
	}
	s.LatencyMax = time.Duration(atomic.LoadUint64(&p.latencyMaxNs))

	return s
}

package flock

import (
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
)

var (
	defaultPoolOnce sync.Once
	defaultPool     *ThreadPool
)

// Default returns the process-wide default ThreadPool, constructing it on
// first use. Its worker count comes from the THREADS environment variable
// if set and valid, otherwise from runtime.GOMAXPROCS(0) after honoring
// any container CPU quota via automaxprocs.
func Default() *ThreadPool {
	defaultPoolOnce.Do(func() {
		if _, err := maxprocs.Set(); err != nil {
			// No cgroup quota info available; GOMAXPROCS is left as-is.
			_ = err
		}

		n := runtime.GOMAXPROCS(0)
		if v := os.Getenv("THREADS"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
				n = parsed
			}
		}

		pool, err := NewThreadPool(WithNumWorkers(n))
		if err != nil {
			// DefaultConfig-derived options are always valid; this would
			// only fire if THREADS supplied something WithNumWorkers
			// itself rejects, which it cannot.
			panic(err)
		}
		defaultPool = pool
	})
	return defaultPool
}

// Push submits task to the default pool. See (*ThreadPool).Push.
func Push(task func()) error {
	return Default().Push(task)
}

// Wait blocks until the default pool has finished every pushed task. See
// (*ThreadPool).Wait.
func Wait() error {
	return Default().Wait()
}

// WaitTimeout behaves like Wait but gives up after d. See
// (*ThreadPool).WaitTimeout.
func WaitTimeout(d time.Duration) error {
	return Default().WaitTimeout(d)
}

// Clear discards queued-but-not-started tasks on the default pool. See
// (*ThreadPool).Clear.
func Clear() {
	Default().Clear()
}

// SetActiveThreads changes the default pool's active worker count. See
// (*ThreadPool).SetActiveThreads.
func SetActiveThreads(k int) {
	Default().SetActiveThreads(k)
}

// ParallelForDefault runs fn on the default pool. See the package-level
// ParallelFor.
func ParallelForDefault(begin, end, chunks int, fn func(i int)) error {
	return ParallelFor(Default(), begin, end, chunks, fn)
}

// ParallelForEachDefault runs fn once per element of items on the
// default pool. See the package-level ParallelForEach.
func ParallelForEachDefault[T any](items []T, fn func(T)) error {
	return ParallelForEach(Default(), items, fn)
}

// AsyncDefault pushes fn onto the default pool and returns a Future for
// its result. See the package-level Async.
func AsyncDefault[T any](fn func() (T, error)) *Future[T] {
	return Async(Default(), fn)
}

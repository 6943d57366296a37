// Package flock implements a work-stealing thread pool for fine-grained
// task parallelism on a single machine.
//
// Short, heterogeneous closures are distributed across a fixed (but
// resizable) set of worker goroutines, each polling a private Chase-Lev
// work-stealing deque. Pushes are mutex-serialized per shard; pops and
// steals are lock-free. Panics escaping a submitted task are captured and
// re-surfaced to the caller at the next Push, Wait, or Future.Get call,
// after which the pool recovers and remains usable.
//
// # Quick start
//
//	pool, err := flock.NewThreadPool(flock.WithNumWorkers(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pool.Shutdown()
//
//	for i := 0; i < 100; i++ {
//	    i := i
//	    if err := pool.Push(func() { fmt.Println(i) }); err != nil {
//	        log.Println(err)
//	    }
//	}
//	if err := pool.Wait(); err != nil {
//	    log.Println(err)
//	}
//
// # Typed results
//
//	fut := flock.Async(pool, func() (int, error) { return 1 + 1, nil })
//	v, err := fut.Get()
//
// # Error propagation
//
// A panicking task never crashes the pool. The first panic captured is
// stored and re-thrown, wrapped in a *TaskError, at the next Push or Wait
// call on the pool; the pool then resumes normal operation. Subsequent
// panics during the drain are dropped; only the first one is surfaced.
//
// # Zero workers
//
// NewThreadPool(WithNumWorkers(0)) runs every pushed task synchronously on
// the calling goroutine; Wait is then a no-op.
//
// # Process-wide default pool
//
// The package-level Push, Wait, WaitTimeout, Clear, SetActiveThreads,
// AsyncDefault, ParallelForDefault, and ParallelForEachDefault functions
// operate on a lazily-constructed global pool returned by Default,
// sized from the THREADS environment variable, or from
// runtime.GOMAXPROCS(0) (after accounting for any container CPU quota)
// otherwise.
package flock

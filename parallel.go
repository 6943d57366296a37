package flock

import "sync"

// ParallelFor splits [begin, end) into chunks contiguous sub-ranges, submits
// one task per chunk to p, and calls fn(i) once for every i in [begin, end)
// from whichever chunk owns it, blocking until every chunk has completed.
// chunks <= 0 defaults to p.NumWorkers() (or 1, for a zero-worker pool).
//
// ParallelFor does not touch p's own todo-list bookkeeping beyond the tasks
// it pushes, so it composes with concurrent unrelated Push/Wait calls on the
// same pool. The calling goroutine helps run queued tasks while it waits
// (see (*ThreadPool).helpUntilDone), so calling ParallelFor from inside a
// task already running on p still makes progress instead of leaving every
// worker parked with nothing left to drain the nested chunks.
//
// A panic from any call to fn is captured and returned once every chunk has
// either finished or been abandoned after the panic; chunks that haven't
// started yet still run, but a chunk that panics abandons the rest of its
// own sub-range.
func ParallelFor(p *ThreadPool, begin, end, chunks int, fn func(i int)) error {
	if end <= begin {
		return nil
	}
	n := end - begin

	numChunks := chunks
	if numChunks <= 0 {
		numChunks = p.NumWorkers()
	}
	if numChunks < 1 {
		numChunks = 1
	}
	if numChunks > n {
		numChunks = n
	}

	size := (n + numChunks - 1) / numChunks
	fl := NewFinishLine(0)

	// A chunk's panic is recorded here rather than posted with fl.Abort, so
	// that the wait below still lasts until every chunk has crossed.
	var panicMu sync.Mutex
	var panicErr error

	for start := begin; start < end; start += size {
		chunkEnd := start + size
		if chunkEnd > end {
			chunkEnd = end
		}
		fl.Start()
		s, e := start, chunkEnd
		err := p.Push(func() {
			defer fl.Cross()
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					if panicErr == nil {
						panicErr = newTaskError(r)
					}
					panicMu.Unlock()
				}
			}()
			for i := s; i < e; i++ {
				fn(i)
			}
		})
		if err != nil {
			fl.Cross()
			fl.Abort(err)
		}
	}

	if err := p.helpUntilDone(fl); err != nil {
		return err
	}
	panicMu.Lock()
	defer panicMu.Unlock()
	return panicErr
}

// ParallelForEach runs fn once per element of items on p, blocking until
// every call has completed, and returns the first captured panic (if any)
// once every element has been attempted.
func ParallelForEach[T any](p *ThreadPool, items []T, fn func(T)) error {
	return ParallelFor(p, 0, len(items), 0, func(i int) {
		fn(items[i])
	})
}

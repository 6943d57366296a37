package flock

import (
	"sync"
	"time"
)

// FinishLine is a one-shot countdown barrier with an error slot. Runners
// can be pre-declared via NewFinishLine/Add, or started dynamically via
// Start. Wait returns once the counter reaches zero or an error has been
// posted via Abort, in which case Wait returns that error.
//
// A FinishLine never operates transitively. Once Wait has returned,
// construct a fresh FinishLine for the next round; unlike TodoList, it
// has no Reset.
type FinishLine struct {
	_       cacheLinePad
	runners int64 // guarded by mu
	_       cacheLinePad

	mu   sync.Mutex
	cond *sync.Cond
	err  error
}

// NewFinishLine constructs a FinishLine pre-declared with the given number
// of runners.
func NewFinishLine(runners int) *FinishLine {
	f := &FinishLine{runners: int64(runners)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Add declares k additional runners.
func (f *FinishLine) Add(k int) {
	f.mu.Lock()
	f.runners += int64(k)
	f.mu.Unlock()
}

// Start declares one additional runner.
func (f *FinishLine) Start() {
	f.Add(1)
}

// Cross decrements the runner count; when it reaches zero, every waiter
// is woken.
func (f *FinishLine) Cross() {
	f.mu.Lock()
	f.runners--
	done := f.runners <= 0
	f.mu.Unlock()
	if done {
		f.cond.Broadcast()
	}
}

// Wait blocks until the runner count reaches zero or an error has been
// posted, in which case that error is returned.
func (f *FinishLine) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.runners > 0 && f.err == nil {
		f.cond.Wait()
	}
	return f.err
}

// Done reports whether the runner count has reached zero or an error has
// been posted, without blocking.
func (f *FinishLine) Done() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runners > 0 && f.err == nil {
		return false, nil
	}
	return true, f.err
}

// waitBriefly blocks for at most d waiting for the runner count to reach
// zero or an error to be posted, reporting whether either happened. It
// exists for helpUntilDone: a goroutine helping drain the pool while it
// waits needs to periodically recheck for newly queued work rather than
// sleeping through Wait's unbounded block.
func (f *FinishLine) waitBriefly(d time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runners > 0 && f.err == nil {
		timedWait(f.cond, &f.mu, d)
	}
	if f.runners > 0 && f.err == nil {
		return false, nil
	}
	return true, f.err
}

// Abort posts an error that Wait will return to every waiter.
func (f *FinishLine) Abort(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	f.cond.Broadcast()
}

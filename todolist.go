package flock

import (
	"math"
	"sync"
	"time"
)

// stoppedSentinel is the large negative value a TodoList's counter is
// forced to by Stop, so that any add()/cross() racing with a stop cannot
// push the counter back to a positive (non-empty-looking) value.
const stoppedSentinel = math.MinInt64 / 2

// TodoList is a resettable counting latch tracking outstanding tasks
// (submitted minus completed). Unlike FinishLine, Add is safe to call at
// any time including while waiters sleep, and Reset returns the list to a
// clean slate for reuse rather than requiring a fresh object.
type TodoList struct {
	_ cacheLinePad
	n int64 // guarded by mu
	_ cacheLinePad

	mu   sync.Mutex
	cond *sync.Cond
	err  error
}

// NewTodoList constructs a TodoList with an initial outstanding count.
func NewTodoList(n int) *TodoList {
	t := &TodoList{n: int64(n)}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Add adds k tasks to the list. Safe to call at any time, including while
// other goroutines are blocked in Wait.
func (t *TodoList) Add(k int) {
	t.mu.Lock()
	t.n += int64(k)
	t.mu.Unlock()
}

// Cross crosses k tasks off the list. Once the counter reaches zero or
// below, every waiter is woken.
func (t *TodoList) Cross(k int) {
	t.mu.Lock()
	t.n -= int64(k)
	empty := t.n <= 0
	t.mu.Unlock()
	if empty {
		t.cond.Broadcast()
	}
}

// Empty reports whether the list currently looks empty.
func (t *TodoList) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n <= 0
}

// Wait blocks until the list is empty or an error has been posted via
// Stop, in which case that error is returned. If d > 0, Wait gives up and
// returns nil after at most d regardless of completion. The caller may
// then observe residual outstanding tasks.
func (t *TodoList) Wait(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	wakeable := func() bool { return t.n <= 0 || t.err != nil }
	if d <= 0 {
		for !wakeable() {
			t.cond.Wait()
		}
		return t.err
	}

	deadline := time.Now().Add(d)
	for !wakeable() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		timedWait(t.cond, &t.mu, remaining)
	}
	return t.err
}

// Stop forces the counter to a large negative sentinel and stores err, so
// that the list reports empty forever (and Wait re-throws err) until the
// next Reset.
func (t *TodoList) Stop(err error) {
	t.mu.Lock()
	t.n = stoppedSentinel
	t.err = err
	t.mu.Unlock()
	t.cond.Broadcast()
}

// Reset returns the list to a clean slate: counter zero, no stored error.
func (t *TodoList) Reset() {
	t.mu.Lock()
	t.n = 0
	t.err = nil
	t.mu.Unlock()
}

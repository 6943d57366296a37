package flock

import (
	"sync"
	"time"
)

// timedWait waits on cond, guarded by mu (already held by the caller),
// for at most d before giving up and returning control to the caller's
// wake-up check. sync.Cond has no built-in timed wait, so this drives one
// with a timer that broadcasts on expiry.
func timedWait(cond *sync.Cond, mu *sync.Mutex, d time.Duration) {
	timer := time.AfterFunc(d, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	cond.Wait()
	timer.Stop()
}

package netconf

import (
	"sync"
	"time"
)

// timedLock is a non-reentrant mutex supporting bounded acquisition, the
// primitive component C requires: "a timed acquisition primitive takes a
// timeout in milliseconds and returns acquired|timeout|error, also reporting
// elapsed milliseconds". It is implemented as a single-slot channel
// semaphore, the common Go idiom for a cancelable/timed mutex, and also
// satisfies sync.Locker so it can back a sync.Cond directly.
type timedLock struct {
	sem chan struct{}
}

func newTimedLock() *timedLock {
	return &timedLock{sem: make(chan struct{}, 1)}
}

// acquire blocks for up to timeout (negative meaning indefinitely, zero
// meaning try-once-non-blocking) and reports whether the lock was obtained
// along with the elapsed wait, so callers can deduct it from a remaining
// budget.
func (l *timedLock) acquire(timeout time.Duration) (ok bool, elapsed time.Duration) {
	start := time.Now()
	if timeout < 0 {
		l.sem <- struct{}{}
		return true, time.Since(start)
	}
	if timeout == 0 {
		select {
		case l.sem <- struct{}{}:
			return true, time.Since(start)
		default:
			return false, time.Since(start)
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case l.sem <- struct{}{}:
		return true, time.Since(start)
	case <-timer.C:
		return false, time.Since(start)
	}
}

func (l *timedLock) release() { <-l.sem }

// Lock/Unlock satisfy sync.Locker (indefinite acquisition), letting this type
// back a sync.Cond.
func (l *timedLock) Lock()   { l.acquire(-1) }
func (l *timedLock) Unlock() { l.release() }

var _ sync.Locker = (*timedLock)(nil)

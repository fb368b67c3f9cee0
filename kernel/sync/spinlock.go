// Package sync provides the spinlock used to guard state shared between the
// simulated CPU and the host goroutines that drive its devices.
package sync

import (
	"runtime"
	"sync/atomic"
)

var (
	// yieldFn is invoked by a spinning goroutine after it fails to acquire
	// a lock attemptsBeforeYielding times in a row.
	yieldFn = runtime.Gosched
)

// attemptsBeforeYielding is the number of failed acquisition attempts after
// which a spinning goroutine yields its thread.
const attemptsBeforeYielding = 64

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	acquireSpinlock(&l.state, attemptsBeforeYielding)
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// Lock and Unlock let a Spinlock be used where a sync.Locker is expected.
func (l *Spinlock) Lock()   { l.Acquire() }
func (l *Spinlock) Unlock() { l.Release() }

func acquireSpinlock(state *uint32, attempts uint32) {
	for {
		for i := uint32(0); i < attempts; i++ {
			if atomic.LoadUint32(state) == 0 && atomic.CompareAndSwapUint32(state, 0, 1) {
				return
			}
		}
		yieldFn()
	}
}

// Package event provides a boolean wait/signal primitive used to gate
// worker goroutines, in the spirit of a Win32 auto/manual-reset event.
package event

import (
	"sync"
	"time"
)

// Latch is a boolean condition that goroutines can Wait on and other
// goroutines can Signal/Clear. With manualReset false, a successful Wait
// atomically clears the state before returning (auto-reset); with it true,
// the state persists across Wait calls until explicitly Cleared.
type Latch struct {
	mu     sync.Mutex
	cond   *sync.Cond
	state  bool
	manual bool
}

// New creates a Latch with the given initial state and reset behavior.
func New(initialState bool, manualReset bool) *Latch {
	l := &Latch{state: initialState, manual: manualReset}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Signal sets the state true and wakes all waiters. Idempotent.
func (l *Latch) Signal() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state {
		return
	}
	l.state = true
	l.cond.Broadcast()
}

// Clear sets the state false.
func (l *Latch) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = false
}

// Wait blocks until the state is true. If manualReset is false, the state
// is atomically cleared before Wait returns.
func (l *Latch) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for !l.state {
		l.cond.Wait()
	}

	if !l.manual {
		l.state = false
	}
}

// WaitTimeout blocks until the state is true or the timeout elapses,
// reporting which happened. On timeout the state is left untouched.
func (l *Latch) WaitTimeout(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	// sync.Cond has no timed wait; a timer that broadcasts on expiry wakes
	// any blocked Wait() so it can re-check the deadline.
	timer := time.AfterFunc(timeout, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer timer.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()

	for !l.state {
		if !time.Now().Before(deadline) {
			return false
		}
		l.cond.Wait()
	}

	if !l.manual {
		l.state = false
	}
	return true
}

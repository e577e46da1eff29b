// Package scheduler drives a set of periodic delegates from a single,
// elevated-priority goroutine, in the spirit of a software high precision
// timer: rather than relying on OS timer granularity, it locks to one
// thread and busy-polls each delegate's due time on a short interval.
package scheduler

import (
	"sync"
	"time"
)

// pollInterval is how often the scheduler sweeps its delegate set checking
// for due pings. Shorter than any delegate's expected period so a delegate
// fires close to on time rather than being quantized to a coarse tick.
const pollInterval = 250 * time.Microsecond

// Delegate is one periodic task driven by the Scheduler.
type Delegate interface {
	// TimerPing is invoked once the delegate's period has elapsed.
	TimerPing()
	// TimerPeriod returns the delegate's current period. Queried on every
	// sweep, so a delegate may change its own period between pings (the
	// video timer delegate does exactly this).
	TimerPeriod() time.Duration
	// FireOnce reports whether the delegate should be removed from the
	// scheduler after its next ping.
	FireOnce() bool
}

type delegateState struct {
	delegate Delegate
	lastPing time.Time
}

// Scheduler runs registered delegates on a single locked OS thread. On
// Linux it also asks for a raised nice priority; no real-time scheduling
// class is requested on any platform.
type Scheduler struct {
	mu        sync.Mutex
	delegates []*delegateState
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates an idle Scheduler. Call Start to begin driving delegates.
func New() *Scheduler {
	return &Scheduler{}
}

// AddDelegate registers a delegate. Its LastPing is set to now immediately,
// so a delegate added after Start does not receive a burst of catch-up
// pings on its first sweep.
func (s *Scheduler) AddDelegate(d Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegates = append(s.delegates, &delegateState{delegate: d, lastPing: time.Now()})
}

// RemoveDelegate unregisters a delegate, if present.
func (s *Scheduler) RemoveDelegate(d Delegate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ds := range s.delegates {
		if ds.delegate == d {
			s.delegates = append(s.delegates[:i], s.delegates[i+1:]...)
			return
		}
	}
}

// RemoveAllDelegates clears the delegate set.
func (s *Scheduler) RemoveAllDelegates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegates = nil
}

// Start sets every registered delegate's LastPing to now, then launches the
// scheduler thread. Must not be called while the scheduler is already
// running; call Stop before a subsequent Start.
func (s *Scheduler) Start() {
	s.mu.Lock()
	now := time.Now()
	for _, ds := range s.delegates {
		ds.lastPing = now
	}
	s.running = true
	s.mu.Unlock()

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run()
}

// Stop signals the scheduler thread to exit and waits for it to do so.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	lockOSThreadAndElevate()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// sweep snapshots the due delegates, then pings each one with s.mu released.
// A delegate's TimerPing may itself call back into the scheduler (the video
// timer delegate's listener refreshes its own last-ping via RemoveDelegate
// followed by AddDelegate) — holding s.mu across the ping would deadlock
// that reentrant call against this same goroutine, since sync.Mutex is not
// reentrant.
func (s *Scheduler) sweep(now time.Time) {
	s.mu.Lock()
	due := make([]*delegateState, 0, len(s.delegates))
	for _, ds := range s.delegates {
		if now.Sub(ds.lastPing) >= ds.delegate.TimerPeriod() {
			due = append(due, ds)
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	fired := make(map[*delegateState]bool, len(due))
	for _, ds := range due {
		ds.delegate.TimerPing()
		fired[ds] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.delegates[:0]
	for _, ds := range s.delegates {
		if fired[ds] {
			ds.lastPing = now
			if ds.delegate.FireOnce() {
				continue // drop from the set
			}
		}
		kept = append(kept, ds)
	}
	s.delegates = kept
}

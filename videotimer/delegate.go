// Package videotimer implements the scheduler.Delegate that stands in for
// the video renderer's frame clock in the reconciliation state machine.
package videotimer

import (
	"fmt"
	"sync"
	"time"
)

// Listener receives a tick every time the delegate's period elapses.
type Listener interface {
	VideoTimerPing()
}

// Delegate is a scheduler.Delegate whose effective period is the base
// frame period scaled by an audio playrate factor: when audio is running
// slower than real time, stretching the video period keeps the two clocks
// converging instead of the video racing ahead forever.
type Delegate struct {
	mu                  sync.RWMutex
	basePeriod          time.Duration
	audioPlayrateFactor float64
	listener            Listener
}

// New creates a Delegate with the given base period (e.g. one video frame
// duration) and an initial playrate factor of 1.0.
func New(basePeriod time.Duration, listener Listener) *Delegate {
	return &Delegate{
		basePeriod:          basePeriod,
		audioPlayrateFactor: 1.0,
		listener:            listener,
	}
}

// SetBasePeriod updates the unscaled frame period. Rejects non-positive
// values.
func (d *Delegate) SetBasePeriod(p time.Duration) error {
	if p <= 0 {
		return fmt.Errorf("video timer base period must be positive, got %v", p)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.basePeriod = p
	return nil
}

// SetAudioPlayrateFactor updates the scale applied to the base period.
// Rejects non-positive values.
func (d *Delegate) SetAudioPlayrateFactor(factor float64) error {
	if factor <= 0 {
		return fmt.Errorf("audio playrate factor must be positive, got %v", factor)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.audioPlayrateFactor = factor
	return nil
}

// AudioPlayrateFactor returns the currently applied scale.
func (d *Delegate) AudioPlayrateFactor() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.audioPlayrateFactor
}

// TimerPeriod implements scheduler.Delegate: basePeriod * audioPlayrateFactor.
func (d *Delegate) TimerPeriod() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return time.Duration(float64(d.basePeriod) * d.audioPlayrateFactor)
}

// TimerPing implements scheduler.Delegate, forwarding to the listener.
func (d *Delegate) TimerPing() {
	d.mu.RLock()
	l := d.listener
	d.mu.RUnlock()
	if l != nil {
		l.VideoTimerPing()
	}
}

// FireOnce implements scheduler.Delegate: the video timer runs for the
// lifetime of the test, never firing just once.
func (d *Delegate) FireOnce() bool {
	return false
}

// PrepareForDestruction drops the listener reference so a ping racing
// teardown cannot call back into a harness that is going away.
func (d *Delegate) PrepareForDestruction() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = nil
}

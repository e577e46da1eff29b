//go:build !linux

package scheduler

import "runtime"

// lockOSThreadAndElevate pins the scheduler goroutine to its own OS thread.
// Real-time priority elevation has no portable equivalent outside Linux, so
// this platform only gets the thread pin.
func lockOSThreadAndElevate() {
	runtime.LockOSThread()
}

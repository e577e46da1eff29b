//go:build linux

package scheduler

import (
	"log"
	"runtime"

	"golang.org/x/sys/unix"
)

// lockOSThreadAndElevate pins the scheduler goroutine to its own OS thread
// and asks for nice -20, the most aggressive nice value. Without
// CAP_SYS_NICE the request fails, the failure is logged and the thread
// keeps its current priority, so the harness still runs as an ordinary
// user. The scheduling class is left unchanged: SCHED_FIFO is not
// requested.
func lockOSThreadAndElevate() {
	runtime.LockOSThread()

	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, -20); err != nil {
		log.Printf("scheduler: could not raise thread priority: %v", err)
	}
}

package harness

import "math"

// pressureThread is a CPU-burning goroutine used to perturb scheduling
// during adversarial test runs, standing in for a thread competing with the
// scheduler and feeder for CPU time on a loaded system.
type pressureThread struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func startPressureThread() *pressureThread {
	p := &pressureThread{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pressureThread) run() {
	defer close(p.doneCh)
	x := 1.0001
	for {
		select {
		case <-p.stopCh:
			return
		default:
			x = math.Sqrt(x*x + 1.0)
			if x > 1e150 {
				x = 1.0001
			}
		}
	}
}

func (p *pressureThread) stop() {
	close(p.stopCh)
	<-p.doneCh
}

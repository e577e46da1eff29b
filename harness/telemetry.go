package harness

import (
	"fmt"
	"strings"
	"time"
)

const (
	telemetryIdleSleep   = 100 * time.Millisecond
	deltaHistoryCapacity = 4096
)

// telemetryLoop drains reconciliation events, formats them for the
// registered DataOutputter, and watches for two kinds of defects a healthy
// run should never exhibit: hiccups (a non-monotonic jump in the video
// frame index) and drift (audio and video frame counters disagreeing by
// more than one frame, after accounting for any pending chunk-cache batch).
func (h *Harness) telemetryLoop() {
	defer close(h.outputDone)

	var lastVideoFrameIter int64 = -1
	haveLast := false

	for {
		select {
		case od, ok := <-h.outputDataCh:
			if !ok {
				return
			}
			h.observeHiccupAndDrift(od, &lastVideoFrameIter, &haveLast)
			h.emit(formatOutputData(od))
		default:
			h.mu.Lock()
			running := h.running
			h.mu.Unlock()
			if !running {
				// Drain whatever is left without blocking, then exit.
				for {
					select {
					case od, ok := <-h.outputDataCh:
						if !ok {
							return
						}
						h.observeHiccupAndDrift(od, &lastVideoFrameIter, &haveLast)
						h.emit(formatOutputData(od))
					default:
						return
					}
				}
			}
			time.Sleep(telemetryIdleSleep)
		}
	}
}

func (h *Harness) observeHiccupAndDrift(od OutputData, lastVideoFrameIter *int64, haveLast *bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if *haveLast && od.VideoFrameIter != *lastVideoFrameIter+1 {
		h.hiccups++
		gap := od.VideoFrameIter - *lastVideoFrameIter - 1
		if gap < 0 {
			gap = -gap
		}
		if gap > h.maxHiccup {
			h.maxHiccup = gap
		}
	}
	*lastVideoFrameIter = od.VideoFrameIter
	*haveLast = true

	h.deltaHistory = append(h.deltaHistory, od.DeltaSeconds)
	if len(h.deltaHistory) > deltaHistoryCapacity {
		h.deltaHistory = h.deltaHistory[len(h.deltaHistory)-deltaHistoryCapacity:]
	}

	drift := (od.AudioChunkIter - 1 + od.AudioChunkCacheAccum) - od.VideoFrameIter
	if drift < 0 {
		drift = -drift
	}
	if drift > 1 {
		h.driftFrames++
		if drift > h.maxDrift {
			h.maxDrift = drift
		}
	}
}

func (h *Harness) emit(text string) {
	h.mu.Lock()
	o := h.outputter
	h.mu.Unlock()
	if o != nil {
		o.OutputData(text)
	}
}

func formatOutputData(od OutputData) string {
	return fmt.Sprintf(
		"[%s] avEq=%d audioChunkIter=%d cacheAccum=%d videoFrameIter=%d delta=%.6fs total=%.3fs",
		od.Source, od.AVEqualizer, od.AudioChunkIter, od.AudioChunkCacheAccum, od.VideoFrameIter, od.DeltaSeconds, od.TotalSeconds,
	)
}

// summarize builds the end-of-test report: per-segment delta stats plus the
// overall hiccup/drift counts observed across the run.
func (h *Harness) summarize() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "=== test summary ===\n")
	fmt.Fprintf(&b, "hiccups=%d (max gap %d frames)\n", h.hiccups, h.maxHiccup)
	fmt.Fprintf(&b, "drift events=%d (max drift %d frames)\n", h.driftFrames, h.maxDrift)

	if period, magnitude := DominantJitterPeriod(h.deltaHistory); period > 0 {
		fmt.Fprintf(&b, "dominant jitter period=%d pumps (magnitude %.4f)\n", period, magnitude)
	}

	for i, st := range h.segments {
		avg := 0.0
		if st.NumPumpsCompleted > 2 {
			avg = st.CumulativeDelta / float64(st.NumPumpsCompleted-2)
		}
		fmt.Fprintf(&b, "segment %d: pumps=%d avgDelta=%.6fs minDelta=%.6fs@%d maxDelta=%.6fs@%d period=%s\n",
			i, st.NumPumpsCompleted, avg, st.MinDelta, st.MinDeltaVideoFrameIter, st.MaxDelta, st.MaxDeltaVideoFrameIter, st.TimerPeriod)
	}
	return b.String()
}

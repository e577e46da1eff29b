package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbodinet/avsynctest/scheduler"
	"github.com/jbodinet/avsynctest/videotimer"
)

// newTestHarness builds a Harness with StartTest's bookkeeping applied but
// without starting the scheduler, feeder or telemetry goroutines, so
// pumpVideoFrame can be driven directly and deterministically.
func newTestHarness(t *testing.T, segs []VideoParameters) *Harness {
	t.Helper()
	h := New()
	h.sched = scheduler.New()
	h.pm = buildPlaymap(segs)
	h.videoSegmentsTotalFrames = h.pm.totalFrames()
	h.frameRateAdjustedOnFrameIndex = h.pm.firstKey()
	h.firstPump = true
	h.adversarialPlayrateFactor = 1.0
	h.chunkCacheSize = 1
	h.segments = make([]SegmentStats, len(segs))
	h.outputDataCh = make(chan OutputData, 1024)
	h.vtimer = videotimer.New(frameDuration(segs[0]), h)
	h.sched.AddDelegate(h.vtimer)
	return h
}

func drainOutputData(h *Harness) []OutputData {
	var out []OutputData
	for {
		select {
		case od := <-h.outputDataCh:
			out = append(out, od)
		default:
			return out
		}
	}
}

func TestPumpVideoFrameFirstCallIsBootstrapOnly(t *testing.T) {
	h := newTestHarness(t, []VideoParameters{{SampleDuration: 1, TimeScale: 30, NumVideoFrames: 1000}})
	h.pumpVideoFrame(VideoTimerSource, 1)

	// The first call still counts toward avEqualizer/videoFrameIter exactly
	// like any other tick; only the telemetry emit (and the delta/total
	// measurement, which has no prior call to measure against) is suppressed.
	assert.Empty(t, drainOutputData(h))
	assert.Equal(t, int64(1), h.videoFrameIter)
	assert.Equal(t, int64(1), h.avEqualizer)
}

func TestPumpVideoFrameVideoTimerAdvancesWhenAhead(t *testing.T) {
	h := newTestHarness(t, []VideoParameters{{SampleDuration: 1, TimeScale: 30, NumVideoFrames: 1000}})
	h.pumpVideoFrame(VideoTimerSource, 1) // bootstrap, still advances videoFrameIter to 1
	h.pumpVideoFrame(VideoTimerSource, 1)

	assert.Equal(t, int64(2), h.videoFrameIter)
	assert.Equal(t, int64(2), h.avEqualizer)
	out := drainOutputData(h)
	require.Len(t, out, 1)
	assert.Equal(t, VideoTimerSource, out[0].Source)
}

func TestPumpVideoFrameAudioOvertakesVideoAdvancesFrameIter(t *testing.T) {
	h := newTestHarness(t, []VideoParameters{{SampleDuration: 1, TimeScale: 30, NumVideoFrames: 1000}})
	h.pumpVideoFrame(AudioUnqueuerSource, 1) // bootstrap: avEq -1 -> advances videoFrameIter to 1, avEq reset to 0

	h.pumpVideoFrame(AudioUnqueuerSource, 3)

	assert.Equal(t, int64(4), h.videoFrameIter)
	assert.Equal(t, int64(0), h.avEqualizer)
	out := drainOutputData(h)
	require.Len(t, out, 1)
	assert.Equal(t, AudioUnqueuerSource, out[0].Source)
}

func TestPumpVideoFrameBalancedEqualizerProducesNoAdvance(t *testing.T) {
	h := newTestHarness(t, []VideoParameters{{SampleDuration: 1, TimeScale: 30, NumVideoFrames: 1000}})
	h.pumpVideoFrame(VideoTimerSource, 1) // bootstrap: avEq=1, videoFrameIter=1

	h.pumpVideoFrame(AudioUnqueuerSource, 1) // avEq exactly cancels to 0: balanced, no advance

	assert.Equal(t, int64(1), h.videoFrameIter, "balanced equalizer should not advance videoFrameIter further")
	assert.Equal(t, int64(0), h.avEqualizer)
	assert.Empty(t, drainOutputData(h))
}

func TestPumpVideoFrameSlowAudioEventuallyAdjustsPlayrate(t *testing.T) {
	h := newTestHarness(t, []VideoParameters{{SampleDuration: 1, TimeScale: 30, NumVideoFrames: 1000}})
	h.pumpVideoFrame(VideoTimerSource, 1) // bootstrap

	h.audioPlaybackDurationActual = 2.0
	h.audioPlaybackDurationIdeal = 1.0

	for i := 0; i < audioRunningSlowThreshold+1; i++ {
		h.pumpVideoFrame(VideoTimerSource, 1)
		h.pumpVideoFrame(AudioUnqueuerSource, 0) // re-check without changing equalizer balance directly
	}

	// After repeated video-ahead ticks outrun by no audio completions, the
	// equalizer stays positive and the slow-audio accumulator should trip
	// the playrate adjustment at least once.
	assert.InDelta(t, 2.0, h.vtimer.AudioPlayrateFactor(), 1e-9)
}

func TestPumpVideoFrameAdjustsFramerateAcrossSegmentBoundary(t *testing.T) {
	segs := []VideoParameters{
		{SampleDuration: 1, TimeScale: 30, NumVideoFrames: 2},
		{SampleDuration: 1, TimeScale: 25, NumVideoFrames: 10},
	}
	h := newTestHarness(t, segs)
	h.pumpVideoFrame(VideoTimerSource, 1) // bootstrap, videoFrameIter=1, still segment 0

	h.pumpVideoFrame(VideoTimerSource, 1) // videoFrameIter=2, crosses into segment 1
	h.pumpVideoFrame(VideoTimerSource, 1) // videoFrameIter=3, still segment 1

	assert.Equal(t, frameDuration(segs[1]), h.vtimer.TimerPeriod())
}

func TestPumpVideoFrameIgnoresFramesPastTotal(t *testing.T) {
	h := newTestHarness(t, []VideoParameters{{SampleDuration: 1, TimeScale: 30, NumVideoFrames: 2}})
	h.pumpVideoFrame(VideoTimerSource, 1) // bootstrap, videoFrameIter=1

	h.pumpVideoFrame(VideoTimerSource, 1) // videoFrameIter=2 == total, still recorded
	out := drainOutputData(h)
	require.Len(t, out, 1)

	h.pumpVideoFrame(VideoTimerSource, 1) // videoFrameIter=3 > total, should be dropped silently
	assert.Empty(t, drainOutputData(h))
}

func TestSummarizeIncludesSegmentStats(t *testing.T) {
	h := newTestHarness(t, []VideoParameters{{SampleDuration: 1, TimeScale: 30, NumVideoFrames: 5}})
	h.pumpVideoFrame(VideoTimerSource, 1)
	for i := 0; i < 4; i++ {
		time.Sleep(time.Millisecond)
		h.pumpVideoFrame(VideoTimerSource, 1)
	}
	summary := h.summarize()
	assert.Contains(t, summary, "segment 0")
	assert.Contains(t, summary, "hiccups=")
}

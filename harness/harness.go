// Package harness implements the audio/video synchronization test harness:
// an audio feeder thread produces PCM chunks sized to one video frame each,
// a scheduler-driven video timer ticks at the frame rate, and a
// reconciliation state machine (PumpVideoFrame) merges the two clocks into
// a single monotonic video frame index, adjusting the video timer's period
// whenever audio playback is found to be running slow.
package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jbodinet/avsynctest/audio"
	"github.com/jbodinet/avsynctest/event"
	"github.com/jbodinet/avsynctest/scheduler"
	"github.com/jbodinet/avsynctest/videotimer"
)

// PumpSource distinguishes which clock drove a call to PumpVideoFrame.
type PumpSource int

const (
	// VideoTimerSource marks a pump driven by the video timer delegate.
	VideoTimerSource PumpSource = iota
	// AudioUnqueuerSource marks a pump driven by audio chunk completions.
	AudioUnqueuerSource
)

func (s PumpSource) String() string {
	if s == AudioUnqueuerSource {
		return "AudioUnqueuer"
	}
	return "VideoTimer"
}

// OutputData is one reconciliation event, queued for the telemetry thread.
type OutputData struct {
	Source               PumpSource
	AVEqualizer          int64
	AudioChunkIter       int64 // reported as AudioChunkIter+1, matching the original's display convention
	AudioChunkCacheAccum int64
	VideoFrameIter       int64
	DeltaSeconds         float64
	TotalSeconds         float64
}

// DataOutputter receives formatted telemetry lines and the end-of-test
// summary. A nil outputter is valid; the telemetry thread simply drops
// lines on the floor.
type DataOutputter interface {
	OutputData(text string)
}

const (
	maxQueuedAudioDurationSeconds = 4.0
	audioRunningSlowThreshold     = 3
	telemetryQueueDepth           = 4096
)

// Harness owns the audio pipeline, the scheduler, the video timer delegate
// and the reconciliation state machine that ties them together.
type Harness struct {
	pipeline *audio.Pipeline
	sched    *scheduler.Scheduler
	vtimer   *videotimer.Delegate

	audioSampleRate uint32

	audioSourceMu sync.Mutex
	audioSource   []byte
	audioDataPtr  int

	mu                            sync.Mutex
	pm                            playmap
	frameRateAdjustedOnFrameIndex int64
	avEqualizer                   int64
	audioRunningSlowAccum         int
	videoFrameIter                int64
	audioChunkIter                int64
	videoSegmentsTotalFrames      int64
	firstPump                     bool
	playbackStart                 time.Time
	lastPumpCall                  time.Time

	adversarialPlayrateFactor float64
	chunkCacheSize            int64
	chunkCacheAccum           int64

	audioPlaybackDurationActual float64
	audioPlaybackDurationIdeal  float64
	haveLastCompletion          bool
	lastCompletionTime          time.Time

	segments    []SegmentStats
	segmentIter int

	running      bool
	completion   *event.Latch
	outputDataCh chan OutputData
	outputDone   chan struct{}
	feederDone   chan struct{}
	outputter    DataOutputter

	hiccups     int64
	maxHiccup   int64
	driftFrames int64
	maxDrift    int64
	deltaHistory []float64

	pressure []*pressureThread
}

// SegmentStats accumulates per-segment delta statistics for the end-of-test
// summary, excluding the first two pumps recorded in each segment and the
// final frame of the run (those are expected to be noisy while the
// reconciliation settles).
type SegmentStats struct {
	MaxDelta               float64
	MaxDeltaVideoFrameIter int64
	MinDelta               float64
	MinDeltaVideoFrameIter int64
	CumulativeDelta        float64
	NumPumpsCompleted      int64
	TimerPeriod            time.Duration
}

// New constructs an idle Harness.
func New() *Harness {
	return &Harness{
		pipeline:                  audio.NewPipeline(),
		sched:                     scheduler.New(),
		completion:                event.New(false, true),
		adversarialPlayrateFactor: 1.0,
		chunkCacheSize:            1,
	}
}

// Initialize opens the audio pipeline at sampleRate and wires it to the
// harness's completion listener.
func (h *Harness) Initialize(sampleRate uint32) error {
	h.audioSampleRate = sampleRate
	if err := h.pipeline.Initialize(float64(sampleRate)); err != nil {
		return fmt.Errorf("harness initialize: %w", err)
	}
	h.pipeline.SetCompletionListener(h)
	return nil
}

// LoadAudio decodes a media file into the harness's audio source buffer,
// which the feeder thread slices into per-video-frame chunks.
func (h *Harness) LoadAudio(ctx context.Context, path string) error {
	chunk, err := audio.DecodeFileToStereo16PCM(ctx, path, h.audioSampleRate)
	if err != nil {
		return fmt.Errorf("harness load audio: %w", err)
	}
	h.audioSourceMu.Lock()
	h.audioSource = chunk.Data
	h.audioDataPtr = 0
	h.audioSourceMu.Unlock()
	return nil
}

// GenerateSampleAudio fills the harness's audio source buffer with a
// synthetic tone (or silence) of the given duration, for tests that don't
// need a real media file.
func (h *Harness) GenerateSampleAudio(durationSeconds float64, silent bool) {
	numFrames := int(durationSeconds * float64(h.audioSampleRate))
	chunk := audio.GenerateSampleTone(numFrames, h.audioSampleRate, silent)
	h.audioSourceMu.Lock()
	h.audioSource = chunk.Data
	h.audioDataPtr = 0
	h.audioSourceMu.Unlock()
}

// SetDataOutputter registers the sink for telemetry lines and the
// end-of-test summary.
func (h *Harness) SetDataOutputter(o DataOutputter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outputter = o
}

// StartTest begins a run over the given video segments. adversarialPlayrateFactor
// overrides the measured audio playrate once slow-audio detection kicks in
// (1.0 disables the override); chunkCacheSize batches that many audio
// chunk completions before pumping the reconciliation state machine;
// numPressureThreads spawns that many CPU-burning threads to perturb
// scheduling.
func (h *Harness) StartTest(segs []VideoParameters, adversarialPlayrateFactor float64, chunkCacheSize int64, numPressureThreads int) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return fmt.Errorf("start test: already running")
	}
	if len(segs) == 0 {
		h.mu.Unlock()
		return fmt.Errorf("start test: empty segment list")
	}
	if chunkCacheSize < 1 {
		chunkCacheSize = 1
	}
	if adversarialPlayrateFactor <= 0 {
		adversarialPlayrateFactor = 1.0
	}

	h.pm = buildPlaymap(segs)
	h.videoSegmentsTotalFrames = h.pm.totalFrames()
	h.frameRateAdjustedOnFrameIndex = h.pm.firstKey()
	h.avEqualizer = 0
	h.audioRunningSlowAccum = 0
	h.videoFrameIter = 0
	h.audioChunkIter = 0
	h.firstPump = true
	h.adversarialPlayrateFactor = adversarialPlayrateFactor
	h.chunkCacheSize = chunkCacheSize
	h.chunkCacheAccum = 0
	h.audioPlaybackDurationActual = 0
	h.audioPlaybackDurationIdeal = 0
	h.haveLastCompletion = false
	h.segments = make([]SegmentStats, len(segs))
	h.segmentIter = 0
	h.outputDataCh = make(chan OutputData, telemetryQueueDepth)
	h.outputDone = make(chan struct{})
	h.feederDone = make(chan struct{})
	h.running = true
	h.hiccups = 0
	h.maxHiccup = 0
	h.driftFrames = 0
	h.maxDrift = 0
	h.deltaHistory = nil
	h.completion.Clear()

	first := segs[0]
	h.vtimer = videotimer.New(frameDuration(first), h)
	h.sched.AddDelegate(h.vtimer)
	h.sched.AddDelegate(h.pipeline)

	for i := 0; i < numPressureThreads; i++ {
		h.pressure = append(h.pressure, startPressureThread())
	}

	h.mu.Unlock()

	h.sched.Start()
	go h.feederLoop()
	go h.telemetryLoop()
	return nil
}

// StopTest halts the scheduler, feeder and telemetry threads and any
// pressure threads.
func (h *Harness) StopTest() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	h.sched.Stop()
	h.sched.RemoveAllDelegates()

	<-h.feederDone
	<-h.outputDone

	for _, p := range h.pressure {
		p.stop()
	}
	h.pressure = nil
}

// WaitOnTestCompletion blocks until the feeder thread has exhausted every
// segment and drained the pipeline.
func (h *Harness) WaitOnTestCompletion() {
	h.completion.Wait()
}

// PrepareForDestruction tears down the audio pipeline and video timer.
func (h *Harness) PrepareForDestruction() error {
	h.StopTest()
	h.vtimer.PrepareForDestruction()
	return h.pipeline.PrepareForDestruction()
}

func frameDuration(p VideoParameters) time.Duration {
	return time.Duration(p.FrameSeconds() * float64(time.Second))
}

// AudioChunkCompleted implements audio.CompletionListener.
func (h *Harness) AudioChunkCompleted(batch []audio.CompletedChunk) {
	now := time.Now()
	var idealSum float64
	for _, c := range batch {
		idealSum += c.DurationSeconds
	}

	h.mu.Lock()
	if h.haveLastCompletion {
		h.audioPlaybackDurationActual = now.Sub(h.lastCompletionTime).Seconds()
	}
	h.lastCompletionTime = now
	h.haveLastCompletion = true
	h.audioPlaybackDurationIdeal = idealSum

	h.chunkCacheAccum += int64(len(batch))
	var pump int64
	if h.chunkCacheAccum >= h.chunkCacheSize {
		pump = h.chunkCacheAccum
	}
	h.mu.Unlock()

	if pump > 0 {
		h.pumpVideoFrame(AudioUnqueuerSource, pump)
		h.mu.Lock()
		h.audioChunkIter += pump
		h.chunkCacheAccum = 0
		h.mu.Unlock()
	}
}

// VideoTimerPing implements videotimer.Listener.
func (h *Harness) VideoTimerPing() {
	h.pumpVideoFrame(VideoTimerSource, 1)
}

// pumpVideoFrame is the reconciliation state machine. It merges video
// ticks (+1 to avEqualizer) and audio completions (-numPumps to
// avEqualizer) into a single monotonic videoFrameIter, adjusting the video
// timer's period whenever the active playmap segment changes and nudging
// audioPlayrateFactor once audio is observed running slow for several
// consecutive reconciliations in a row.
func (h *Harness) pumpVideoFrame(source PumpSource, numPumps int64) {
	h.mu.Lock()

	var numActionablePumps int64
	adjustedFramerate := false

	switch source {
	case VideoTimerSource:
		h.avEqualizer += numPumps
		if h.avEqualizer > 0 {
			numActionablePumps = numPumps
			h.videoFrameIter += numActionablePumps
		} else {
			h.mu.Unlock()
			return
		}

	case AudioUnqueuerSource:
		h.avEqualizer -= numPumps

		switch {
		case h.avEqualizer < 0:
			numActionablePumps = -h.avEqualizer
			h.videoFrameIter += numActionablePumps
			h.avEqualizer = 0
			h.audioRunningSlowAccum = 0
			h.refreshVideoTimerLastPingLocked()

		case h.avEqualizer > 0:
			h.audioRunningSlowAccum++
			if h.audioRunningSlowAccum > audioRunningSlowThreshold {
				factor := 1.0
				if h.audioPlaybackDurationIdeal > 0 {
					factor = h.audioPlaybackDurationActual / h.audioPlaybackDurationIdeal
				}
				if h.adversarialPlayrateFactor != 1.0 {
					factor = h.adversarialPlayrateFactor
				}
				if factor > 0 {
					h.vtimer.SetAudioPlayrateFactor(factor)
				}
				h.refreshVideoTimerLastPingLocked()
				h.audioRunningSlowAccum = 0
			}
			h.mu.Unlock()
			return

		default: // == 0
			h.audioRunningSlowAccum = 0
			h.mu.Unlock()
			return
		}
	}

	if len(h.pm.entries) > 1 {
		if entry, ok := h.pm.lookup(h.videoFrameIter); ok {
			if entry.startFrame != h.frameRateAdjustedOnFrameIndex {
				h.vtimer.SetBasePeriod(frameDuration(entry.params))
				h.frameRateAdjustedOnFrameIndex = entry.startFrame
				adjustedFramerate = true
			}
		}
	}

	// The first actionable call only primes the clocks: avEqualizer and
	// videoFrameIter above are already counted for real, but there is no
	// prior lastPumpCall to measure a delta against, so suppress the
	// telemetry emit this one time.
	if h.firstPump {
		h.firstPump = false
		now := time.Now()
		h.playbackStart = now
		h.lastPumpCall = now
		h.mu.Unlock()
		return
	}

	if h.videoFrameIter > h.videoSegmentsTotalFrames {
		h.mu.Unlock()
		return
	}

	now := time.Now()
	delta := now.Sub(h.lastPumpCall).Seconds()
	total := now.Sub(h.playbackStart).Seconds()
	h.lastPumpCall = now

	od := OutputData{
		Source:               source,
		AVEqualizer:          h.avEqualizer,
		AudioChunkIter:        h.audioChunkIter + 1,
		AudioChunkCacheAccum: h.chunkCacheAccum,
		VideoFrameIter:       h.videoFrameIter,
		DeltaSeconds:         delta,
		TotalSeconds:         total,
	}

	h.recordSegmentStatsLocked(delta, adjustedFramerate)

	h.mu.Unlock()

	select {
	case h.outputDataCh <- od:
	default:
		// telemetry queue full: drop rather than block the reconciliation path
	}
}

// refreshVideoTimerLastPingLocked re-anchors the video timer's due time to
// now, so a just-recovered video timer doesn't immediately fire a
// catch-up ping on top of the correction this reconciliation just made.
// Must be called with h.mu held.
func (h *Harness) refreshVideoTimerLastPingLocked() {
	h.sched.RemoveDelegate(h.vtimer)
	h.sched.AddDelegate(h.vtimer)
}

// recordSegmentStatsLocked updates the current segment's running delta
// stats, excluding the first two and last frame pumped (the reconciliation
// is still settling during those). Must be called with h.mu held.
func (h *Harness) recordSegmentStatsLocked(delta float64, adjustedFramerate bool) {
	if h.segmentIter >= len(h.segments) {
		return
	}
	st := &h.segments[h.segmentIter]
	st.NumPumpsCompleted++
	if st.NumPumpsCompleted > 2 && h.videoFrameIter < h.videoSegmentsTotalFrames {
		st.CumulativeDelta += delta
		if st.NumPumpsCompleted == 3 || delta > st.MaxDelta {
			st.MaxDelta = delta
			st.MaxDeltaVideoFrameIter = h.videoFrameIter
		}
		if st.NumPumpsCompleted == 3 || delta < st.MinDelta {
			st.MinDelta = delta
			st.MinDeltaVideoFrameIter = h.videoFrameIter
		}
	}
	if !adjustedFramerate {
		st.TimerPeriod = h.vtimer.TimerPeriod()
	} else {
		h.segmentIter++
	}
}

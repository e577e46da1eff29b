package harness

import (
	"math"
	"time"

	"github.com/jbodinet/avsynctest/audio"
)

// feeder queue-depth hysteresis: the feeder tops the pipeline back up to
// maxQueuedAudioDurationSeconds whenever more than lowWaterSeconds of room
// is left below that maximum, and otherwise naps to avoid busy-spinning.
const (
	lowWaterSeconds = 0.25
	feederIdleSleep = 500 * time.Millisecond
)

// feederLoop produces audio chunks sized to exactly one video frame's worth
// of audio frames each, advancing through the playlist's segments in
// order, until every segment has been queued and the pipeline has drained.
func (h *Harness) feederLoop() {
	defer close(h.feederDone)

	segIdx := 0
	framesQueuedInSeg := int64(0)
	remainder := 0.0

	for {
		h.mu.Lock()
		running := h.running
		rate := h.adversarialPlayrateFactor
		h.mu.Unlock()
		if !running {
			return
		}

		if segIdx >= len(h.pm.entries) {
			break
		}

		queued := h.pipeline.QueuedAudioDurationSeconds()
		budget := maxQueuedAudioDurationSeconds - queued
		if budget <= lowWaterSeconds {
			time.Sleep(feederIdleSleep)
			continue
		}

		queueableMs := budget * 1000.0
		var batch []audio.Chunk

		for queueableMs > 0 && segIdx < len(h.pm.entries) {
			seg := h.pm.entries[segIdx].params
			frameMs := seg.FrameSeconds() * 1000.0
			if frameMs <= 0 {
				segIdx++
				framesQueuedInSeg = 0
				continue
			}

			framesRemainingInSeg := seg.NumVideoFrames - framesQueuedInSeg
			numFramesToQueue := int64(queueableMs / frameMs)
			if numFramesToQueue > framesRemainingInSeg {
				numFramesToQueue = framesRemainingInSeg
			}
			if numFramesToQueue <= 0 {
				if framesRemainingInSeg > 0 {
					// The budget left cannot hold another whole frame: keep
					// this segment's position and wait for the queue to drain.
					break
				}
				segIdx++
				framesQueuedInSeg = 0
				continue
			}

			audioFramesPerVideoFrame := seg.FrameSeconds() * float64(h.audioSampleRate) * rate

			for i := int64(0); i < numFramesToQueue; i++ {
				whole := math.Floor(audioFramesPerVideoFrame)
				remainder += audioFramesPerVideoFrame - whole
				numAudioFrames := int64(whole)
				if remainder > 1.0 {
					numAudioFrames++
					remainder -= 1.0
				}
				batch = append(batch, h.buildAudioChunk(numAudioFrames))
			}

			queueableMs -= float64(numFramesToQueue) * frameMs
			framesQueuedInSeg += numFramesToQueue
			if framesQueuedInSeg >= seg.NumVideoFrames {
				segIdx++
				framesQueuedInSeg = 0
			}
		}

		if len(batch) > 0 {
			if err := h.pipeline.QueueAudio(batch); err != nil {
				h.emit("feeder: queue audio failed: " + err.Error())
				return
			}
		} else {
			time.Sleep(feederIdleSleep)
		}
	}

	for h.pipeline.NumBuffersQueued() > 0 {
		time.Sleep(feederIdleSleep)
	}

	h.completion.Signal()
	h.emit(h.summarize())
}

// buildAudioChunk slices numAudioFrames worth of Stereo16 PCM out of the
// harness's audio source buffer, wrapping back to the start of the buffer
// when the cursor would otherwise overrun it, so a short sample clip can
// back an arbitrarily long test.
func (h *Harness) buildAudioChunk(numAudioFrames int64) audio.Chunk {
	frameLen := int64(audio.FormatStereo16.FrameByteLength())
	byteLen := numAudioFrames * frameLen

	h.audioSourceMu.Lock()
	defer h.audioSourceMu.Unlock()

	data := make([]byte, byteLen)
	if len(h.audioSource) == 0 {
		return audio.Chunk{Format: audio.FormatStereo16, SampleRate: h.audioSampleRate, Data: data}
	}

	src := h.audioSource
	var written int64
	for written < byteLen {
		if h.audioDataPtr >= len(src) {
			h.audioDataPtr = 0
		}
		n := copy(data[written:], src[h.audioDataPtr:])
		written += int64(n)
		h.audioDataPtr += n
	}

	return audio.Chunk{Format: audio.FormatStereo16, SampleRate: h.audioSampleRate, Data: data}
}

package harness

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

// remainderStep mirrors the accumulator update in feederLoop: carries the
// fractional part of audioFramesPerVideoFrame forward and spills an extra
// whole frame out once it exceeds 1.0.
func remainderStep(audioFramesPerVideoFrame, remainder float64) (numFrames int64, newRemainder float64) {
	whole := math.Floor(audioFramesPerVideoFrame)
	newRemainder = remainder + (audioFramesPerVideoFrame - whole)
	numFrames = int64(whole)
	if newRemainder > 1.0 {
		numFrames++
		newRemainder -= 1.0
	}
	return numFrames, newRemainder
}

// TestFeederRemainderAccumulatorStaysBounded asserts the invariant that lets
// the feeder use a fixed per-frame audio-frame count without cumulative
// rounding drift: the running remainder never leaves [0, 1], and the total
// audio frames queued across N video frames never differs from the ideal
// (unrounded) total by more than one frame.
func TestFeederRemainderAccumulatorStaysBounded(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		audioFramesPerVideoFrame := rapid.Float64Range(0.01, 2000.0).Draw(rt, "audioFramesPerVideoFrame")
		numSteps := rapid.IntRange(1, 5000).Draw(rt, "numSteps")

		remainder := 0.0
		var totalQueued int64
		for i := 0; i < numSteps; i++ {
			var n int64
			n, remainder = remainderStep(audioFramesPerVideoFrame, remainder)
			totalQueued += n

			if remainder < 0 || remainder > 1.0 {
				rt.Fatalf("remainder escaped [0,1]: %v", remainder)
			}
		}

		idealTotal := audioFramesPerVideoFrame * float64(numSteps)
		if diff := math.Abs(float64(totalQueued) - idealTotal); diff > 1.0+1e-9 {
			rt.Fatalf("queued frame total %d drifted from ideal %v by %v", totalQueued, idealTotal, diff)
		}
	})
}

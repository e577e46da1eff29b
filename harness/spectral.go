package harness

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// DominantJitterPeriod runs an FFT over a series of per-pump delta
// timings and reports the strongest non-DC frequency component, expressed
// as a period in samples, along with its magnitude. A healthy run's
// deltas should look like noise around the frame period; a recurring
// scheduling hiccup (e.g. a periodic pressure thread or a cgroup quota
// throttle) shows up as a sharp peak here long before it's obvious by eye
// in the raw telemetry stream.
func DominantJitterPeriod(deltas []float64) (period int, magnitude float64) {
	n := len(deltas)
	if n < 4 {
		return 0, 0
	}

	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, d := range deltas {
		centered[i] = d - mean
	}

	spectrum := fft.FFTReal(centered)

	bestBin := 0
	bestMag := 0.0
	// Skip the DC bin (index 0) and mirror half of the spectrum.
	for i := 1; i < n/2; i++ {
		mag := cmplx.Abs(spectrum[i])
		if mag > bestMag {
			bestMag = mag
			bestBin = i
		}
	}

	if bestBin == 0 {
		return 0, 0
	}
	return int(math.Round(float64(n) / float64(bestBin))), bestMag
}

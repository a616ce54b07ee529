package features

import (
	"math"
	"sort"
)

const (
	// madScale rescales a median absolute deviation to be comparable
	// with a standard deviation under normality.
	madScale = 1.4826

	// rollingWindow bounds the trailing sample count, current row
	// included, for the per-user robust deviation statistics.
	rollingWindow = 15

	// minRollingSamples is the smallest window the per-user statistics
	// are trusted for. Below it the dataset-global statistics apply.
	minRollingSamples = 2

	// ewmaSpan controls the decay of the exponentially weighted mean.
	ewmaSpan = 5

	// minGapSeconds floors inter-transaction gaps before log1p so that
	// bursts with identical timestamps still yield a finite signal.
	minGapSeconds = 0.001
)

// ewmaAlpha is the smoothing factor derived from ewmaSpan.
const ewmaAlpha = 2.0 / (ewmaSpan + 1)

// medianInPlace sorts vs and returns its median, averaging the two
// middle values for even lengths. An empty slice yields 0.
func medianInPlace(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sort.Float64s(vs)
	mid := len(vs) / 2
	if len(vs)%2 == 1 {
		return vs[mid]
	}
	return (vs[mid-1] + vs[mid]) / 2
}

// robustWindow computes rolling median/MAD statistics, reusing one
// scratch buffer across rows to keep the per-row cost allocation-free.
type robustWindow struct {
	scratch []float64
}

// stats returns the median of window and the deviation denominator
// max(MAD * madScale, 1).
func (w *robustWindow) stats(window []float64) (median, denom float64) {
	w.scratch = append(w.scratch[:0], window...)
	median = medianInPlace(w.scratch)
	for i, v := range w.scratch {
		w.scratch[i] = math.Abs(v - median)
	}
	mad := medianInPlace(w.scratch)
	return median, math.Max(mad*madScale, 1)
}

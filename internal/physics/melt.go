package physics

import (
	"math"
	"time"
)

// LatentHeatOfFusion in J/kg. Dividing energy in J/m2 by it gives mm w.e.
const LatentHeatOfFusion = 334000.0

// RunningMeltSum integrates melt energy (W/m2) sampled every step into
// cumulative melt in m w.e.
//
// A NaN sample carries the previous sum forward unless resetAtNaN is set. With
// resetAtNaN the sum restarts from zero at the gap, and a second consecutive
// NaN blanks the sum one sample back, so a run of gaps shows as NaN followed
// by a single zero.
func RunningMeltSum(melt []float64, step time.Duration, resetAtNaN bool) []float64 {
	sum := make([]float64, len(melt))
	factor := step.Seconds() / LatentHeatOfFusion

	for i, v := range melt {
		prev := 0.0
		if i > 0 {
			prev = sum[i-1]
		}
		switch {
		case !math.IsNaN(v):
			sum[i] = prev + v*factor
		case !resetAtNaN:
			sum[i] = prev
		case i > 0 && math.IsNaN(melt[i-1]):
			sum[i-1] = math.NaN()
		}
	}

	for i := range sum {
		sum[i] /= 1000
	}
	return sum
}

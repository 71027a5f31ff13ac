package physics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrLengthMismatch is returned when series of different length are combined
var ErrLengthMismatch = errors.New("series lengths differ")

func checkLengths(series ...[]float64) error {
	for i := 1; i < len(series); i++ {
		if len(series[i]) != len(series[0]) {
			return fmt.Errorf("%w: term %d has %d samples, want %d", ErrLengthMismatch, i, len(series[i]), len(series[0]))
		}
	}
	return nil
}

// Sum adds the series sample by sample. NaN in any term gives NaN.
func Sum(first []float64, rest ...[]float64) ([]float64, error) {
	if err := checkLengths(append([][]float64{first}, rest...)...); err != nil {
		return nil, err
	}
	out := make([]float64, len(first))
	copy(out, first)
	for _, s := range rest {
		floats.Add(out, s)
	}
	return out, nil
}

// Sub returns a - b
func Sub(a, b []float64) ([]float64, error) {
	if err := checkLengths(a, b); err != nil {
		return nil, err
	}
	return floats.SubTo(make([]float64, len(a)), a, b), nil
}

// Scale returns k * s
func Scale(k float64, s []float64) []float64 {
	return floats.ScaleTo(make([]float64, len(s)), k, s)
}

// Neg returns -s
func Neg(s []float64) []float64 {
	return Scale(-1, s)
}

// ApparentGroundHeatFlux recovers the subsurface heat flux as the model
// reported it before the ground heat flux was rebuilt from the energy
// balance: Gs - SumDivQ - melt_energy + totm_nrg.
func ApparentGroundHeatFlux(gs, internalSW, surfaceMelt, totalMelt []float64) ([]float64, error) {
	if err := checkLengths(gs, internalSW, surfaceMelt, totalMelt); err != nil {
		return nil, err
	}
	out := make([]float64, len(gs))
	for i := range out {
		out[i] = gs[i] - internalSW[i] - surfaceMelt[i] + totalMelt[i]
	}
	return out, nil
}

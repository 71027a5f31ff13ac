package physics

import "time"

// Warming is the outcome of raising the apparent atmospheric temperature
type Warming struct {
	DeltaT float64

	// AtmosphereTemperature is the radiative temperature of LWin in K.
	AtmosphereTemperature []float64

	// Longwave fluxes follow the model's sign convention, in W/m2.
	IncomingLongwave    []float64
	UncorrectedOutgoing []float64
	OutgoingLongwave    []float64

	// SkinTemperature is in °C, capped at the melting point.
	SkinTemperature []float64

	// Melt is the total melt energy after warming, in W/m2.
	Melt []float64
}

// WarmAtmosphere perturbs incoming longwave by treating LWin as blackbody
// emission from the atmosphere and warming it by deltaT kelvin. The surface
// cannot exceed 0 °C, so outgoing longwave is capped at the melting point
// emission and the surplus goes into melt.
func WarmAtmosphere(lwIn, lwNet, totalMelt []float64, deltaT float64) (Warming, error) {
	if err := checkLengths(lwIn, lwNet, totalMelt); err != nil {
		return Warming{}, err
	}
	n := len(lwIn)
	w := Warming{
		DeltaT:                deltaT,
		AtmosphereTemperature: make([]float64, n),
		IncomingLongwave:      make([]float64, n),
		UncorrectedOutgoing:   make([]float64, n),
		SkinTemperature:       make([]float64, n),
		OutgoingLongwave:      make([]float64, n),
		Melt:                  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		tAtm := TemperatureFromLongwave(-lwIn[i], false)
		in := -LongwaveFromTemperature(tAtm+deltaT, false)
		outUC := lwNet[i] - in
		skin := TemperatureFromLongwave(outUC, true)
		if skin > 0 {
			skin = 0
		}
		out := LongwaveFromTemperature(skin, true)

		w.AtmosphereTemperature[i] = tAtm
		w.IncomingLongwave[i] = in
		w.UncorrectedOutgoing[i] = outUC
		w.SkinTemperature[i] = skin
		w.OutgoingLongwave[i] = out
		w.Melt[i] = totalMelt[i] + out - outUC
	}
	return w, nil
}

// CumulativeMelt integrates observed and warmed melt with RunningMeltSum
func (w Warming) CumulativeMelt(observed []float64, step time.Duration, resetAtNaN bool) (obs, warmed []float64) {
	return RunningMeltSum(observed, step, resetAtNaN), RunningMeltSum(w.Melt, step, resetAtNaN)
}

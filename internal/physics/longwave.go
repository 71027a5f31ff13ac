// Package physics holds the stateless conversions used when analysing SEB
// series: blackbody longwave radiation, cumulative melt and simple series
// algebra.
package physics

import "math"

const (
	// StefanBoltzmann in W m-2 K-4
	StefanBoltzmann = 5.67e-8
	// CelsiusOffset converts °C to K
	CelsiusOffset = 273.16
)

func kelvinOffset(celsius bool) float64 {
	if celsius {
		return CelsiusOffset
	}
	return 0
}

// LongwaveFromTemperature returns the blackbody emission of a surface at
// temperature t, signed as outgoing (negative).
func LongwaveFromTemperature(t float64, celsius bool) float64 {
	return -math.Pow(t+kelvinOffset(celsius), 4) * StefanBoltzmann
}

// TemperatureFromLongwave inverts LongwaveFromTemperature. Positive lw has
// no real solution and yields NaN.
func TemperatureFromLongwave(lw float64, celsius bool) float64 {
	return math.Pow(-lw/StefanBoltzmann, 0.25) - kelvinOffset(celsius)
}

// LongwaveSeries applies LongwaveFromTemperature to every sample
func LongwaveSeries(temps []float64, celsius bool) []float64 {
	out := make([]float64, len(temps))
	for i, t := range temps {
		out[i] = LongwaveFromTemperature(t, celsius)
	}
	return out
}

// TemperatureSeries applies TemperatureFromLongwave to every sample
func TemperatureSeries(lw []float64, celsius bool) []float64 {
	out := make([]float64, len(lw))
	for i, v := range lw {
		out[i] = TemperatureFromLongwave(v, celsius)
	}
	return out
}

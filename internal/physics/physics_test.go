package physics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLongwaveFromTemperature(t *testing.T) {
	assert.InDelta(t, -315.6832, LongwaveFromTemperature(0, true), 1e-4)
	assert.InDelta(t, -315.6832, LongwaveFromTemperature(273.16, false), 1e-4)
	assert.InDelta(t, 0, LongwaveFromTemperature(-273.16, true), 1e-12)
}

func TestLongwaveRoundTrip(t *testing.T) {
	for c := -60.0; c <= 5.0; c += 0.5 {
		lw := LongwaveFromTemperature(c, true)
		assert.InDelta(t, c, TemperatureFromLongwave(lw, true), 1e-9, "temperature %v", c)
		assert.InDelta(t, c+CelsiusOffset, TemperatureFromLongwave(lw, false), 1e-9)
	}
}

func TestTemperatureFromLongwave_PositiveFluxIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(TemperatureFromLongwave(10, true)))
}

func TestSeriesConversions(t *testing.T) {
	temps := []float64{-10, 0, math.NaN()}
	lw := LongwaveSeries(temps, true)
	back := TemperatureSeries(lw, true)

	assert.InDelta(t, -10, back[0], 1e-9)
	assert.InDelta(t, 0, back[1], 1e-9)
	assert.True(t, math.IsNaN(back[2]))
}

func TestRunningMeltSum(t *testing.T) {
	// 334000 J over one hour equals 1 mm w.e. at 334000/3600 W/m2.
	unit := LatentHeatOfFusion / 3600
	mm := 1.0 / 1000

	tests := []struct {
		name  string
		melt  []float64
		reset bool
		want  []float64
	}{
		{
			name: "defined values accumulate",
			melt: []float64{unit, unit, 2 * unit},
			want: []float64{mm, 2 * mm, 4 * mm},
		},
		{
			name:  "single gap restarts the sum",
			melt:  []float64{2 * unit, 2 * unit, math.NaN(), 2 * unit},
			reset: true,
			want:  []float64{2 * mm, 4 * mm, 0, 2 * mm},
		},
		{
			name:  "double gap blanks the sample before",
			melt:  []float64{2 * unit, 2 * unit, math.NaN(), math.NaN(), 2 * unit},
			reset: true,
			want:  []float64{2 * mm, 4 * mm, math.NaN(), 0, 2 * mm},
		},
		{
			name: "gap carries forward without reset",
			melt: []float64{2 * unit, math.NaN(), math.NaN(), unit},
			want: []float64{2 * mm, 2 * mm, 2 * mm, 3 * mm},
		},
		{
			name:  "leading gap",
			melt:  []float64{math.NaN(), unit},
			reset: true,
			want:  []float64{0, mm},
		},
		{
			name: "empty",
			melt: []float64{},
			want: []float64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RunningMeltSum(tt.melt, time.Hour, tt.reset)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				if math.IsNaN(tt.want[i]) {
					assert.True(t, math.IsNaN(got[i]), "index %d: got %v", i, got[i])
					continue
				}
				assert.InDelta(t, tt.want[i], got[i], 1e-12, "index %d", i)
			}
		})
	}
}

func TestSeriesAlgebra(t *testing.T) {
	a := []float64{1, 2, math.NaN()}
	b := []float64{10, 20, 30}

	sum, err := Sum(a, b, b)
	require.NoError(t, err)
	assert.Equal(t, 21.0, sum[0])
	assert.Equal(t, 42.0, sum[1])
	assert.True(t, math.IsNaN(sum[2]))
	assert.Equal(t, 1.0, a[0], "inputs are not modified")

	diff, err := Sub(b, a)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 18}, diff[:2])

	assert.Equal(t, []float64{-10, -20, -30}, Neg(b))
	assert.Equal(t, []float64{5, 10, 15}, Scale(0.5, b))

	_, err = Sum(a, b[:2])
	assert.ErrorIs(t, err, ErrLengthMismatch)
	_, err = Sub(a, nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestApparentGroundHeatFlux(t *testing.T) {
	got, err := ApparentGroundHeatFlux([]float64{-24}, []float64{10}, []float64{30}, []float64{35})
	require.NoError(t, err)
	assert.Equal(t, []float64{-29}, got)

	_, err = ApparentGroundHeatFlux([]float64{1}, []float64{1, 2}, []float64{1}, []float64{1})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestWarmAtmosphere(t *testing.T) {
	lwIn := []float64{300, 200}
	lwNet := []float64{-15, -60}
	melt := []float64{5, 0}

	w, err := WarmAtmosphere(lwIn, lwNet, melt, 1)
	require.NoError(t, err)

	assert.InDelta(t, 269.7022, w.AtmosphereTemperature[0], 1e-4)
	assert.InDelta(t, 304.4742, w.IncomingLongwave[0], 1e-4)
	assert.InDelta(t, -319.4742, w.UncorrectedOutgoing[0], 1e-4)

	// The surface would warm above 0 °C, so it is capped and the excess melts.
	assert.Equal(t, 0.0, w.SkinTemperature[0])
	assert.InDelta(t, -315.6832, w.OutgoingLongwave[0], 1e-4)
	assert.InDelta(t, 5+(-315.6832)-(-319.4742), w.Melt[0], 1e-3)

	// A cold surface stays below melting and melt is unchanged.
	assert.Less(t, w.SkinTemperature[1], 0.0)
	assert.InDelta(t, w.UncorrectedOutgoing[1], w.OutgoingLongwave[1], 1e-9)
	assert.InDelta(t, 0, w.Melt[1], 1e-9)

	obs, warmed := w.CumulativeMelt(melt, time.Hour, true)
	assert.Len(t, obs, 2)
	assert.Greater(t, warmed[0], obs[0])

	_, err = WarmAtmosphere(lwIn, lwNet[:1], melt, 1)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

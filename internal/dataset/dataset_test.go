package dataset

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seb-platform/internal/models"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

func writeSEB(t *testing.T, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func bufferLogger() (*logging.StructuredLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logging.NewStructuredLogger("seb-test", Version, logging.DebugLevel)
	logger.SetOutput(&buf)
	return logger, &buf
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantErr    bool
		hourly     bool
		timeFields int
		offset     int
		vars       []string
	}{
		{
			name:       "hourly with Time column",
			line:       "year   day  hour  Time   SWin_corr  SWout  Gs",
			hourly:     true,
			timeFields: 3,
			offset:     4,
			vars:       []string{"SWin_corr", "SWout", "Gs"},
		},
		{
			name:       "hourly without Time column",
			line:       "year day hour Tsurf_calc",
			hourly:     true,
			timeFields: 3,
			offset:     3,
			vars:       []string{"Tsurf_calc"},
		},
		{
			name:       "daily",
			line:       "year day melt_energy Hsen",
			timeFields: 2,
			offset:     2,
			vars:       []string{"melt_energy", "Hsen"},
		},
		{
			name:       "daily with Time column",
			line:       "year day Time Hlat",
			timeFields: 2,
			offset:     3,
			vars:       []string{"Hlat"},
		},
		{name: "wrong order", line: "day year hour Gs", wantErr: true},
		{name: "single token", line: "year", wantErr: true},
		{name: "no variables", line: "year day hour Time", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := ParseHeader(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, models.ErrHeaderFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.hourly, h.Hourly)
			assert.Equal(t, tt.timeFields, h.TimeFields)
			assert.Equal(t, tt.offset, h.ValueOffset)
			assert.Equal(t, tt.vars, h.Variables)
			if tt.hourly {
				assert.Equal(t, time.Hour, h.Step)
			} else {
				assert.Equal(t, 24*time.Hour, h.Step)
			}
		})
	}
}

func TestLoad_HourlyFile(t *testing.T) {
	path := writeSEB(t, "S5_SEB_2003_2019_rp10b.txt",
		"year day hour Time SWin_corr LWin Hsen",
		"2004 60 22 0 100.5 250 -999",
		"2004 60 23 0 90 -999 5",
		"2004 61 0 0 80 240 6",
		"2004 61 1 0 70 235 7",
	)

	d, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, StationS5, d.Station())
	assert.True(t, d.Hourly())
	assert.Equal(t, time.Hour, d.TimeStep())
	assert.Equal(t, 4, d.Len())
	assert.Equal(t, "SEB_hourly_data version 1.1", d.Version())

	times := d.Times()
	require.Len(t, times, 4)
	assert.Equal(t, time.Date(2004, time.February, 29, 22, 0, 0, 0, time.UTC), times[0])
	for i := 1; i < len(times); i++ {
		assert.Equal(t, time.Hour, times[i].Sub(times[i-1]))
	}

	swin, err := d.Extract(context.Background(), "SWin_corr")
	require.NoError(t, err)
	assert.Equal(t, []float64{100.5, 90, 80, 70}, swin)

	lwin, err := d.Extract(context.Background(), " LWin ")
	require.NoError(t, err)
	require.Len(t, lwin, 4)
	assert.True(t, math.IsNaN(lwin[1]), "sentinel must become NaN")

	hsen, err := d.Extract(context.Background(), "Hsen")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(hsen[0]))
	assert.Equal(t, 5.0, hsen[1])

	for _, v := range d.Variables() {
		assert.False(t, v.Erased)
		series, err := d.Extract(context.Background(), v.Name)
		require.NoError(t, err)
		assert.Len(t, series, d.Len())
	}
}

func TestLoad_ExtractReturnsCopy(t *testing.T) {
	path := writeSEB(t, "S9_SEB_2003_2019_5.txt",
		"year day hour Gs",
		"2010 1 0 1",
		"2010 1 1 2",
	)
	d, err := Load(context.Background(), path)
	require.NoError(t, err)

	gs, err := d.Extract(context.Background(), "Gs")
	require.NoError(t, err)
	gs[0] = 42

	again, err := d.Extract(context.Background(), "Gs")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again[0])
}

func TestLoad_DailyFile(t *testing.T) {
	path := writeSEB(t, "S10_SEB_2009_2019.txt",
		"year day melt_energy",
		"2009 365 1",
		"2009 366 2",
		"2010 2 3",
	)
	d, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.False(t, d.Hourly())
	assert.Equal(t, 24*time.Hour, d.TimeStep())
	times := d.Times()
	assert.Equal(t, time.Date(2009, time.December, 31, 0, 0, 0, 0, time.UTC), times[0])
	// The raw day field of row 2 is nonsense; the axis ignores it.
	assert.Equal(t, time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC), times[1])
	assert.Equal(t, time.Date(2010, time.January, 2, 0, 0, 0, 0, time.UTC), times[2])
}

func TestLoad_CorruptedTimeFields(t *testing.T) {
	path := writeSEB(t, "S9_SEB_2003_2019_5.txt",
		"year day hour SWout Hlat",
		"2012 366 22 10 1",
		"1900 1 5 11 2",
		"-999 -999 -999 12 3",
		"-999 -999 -999 13",
		"2013 1 2 14 5",
	)

	d, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 5, d.Len())

	times := d.Times()
	start := time.Date(2012, time.December, 31, 22, 0, 0, 0, time.UTC)
	for i, ts := range times {
		assert.Equal(t, start.Add(time.Duration(i)*time.Hour), ts, "sample %d", i)
	}

	valid := d.SampleValid()
	assert.Equal(t, []bool{true, true, false, false, true}, valid)

	raw := d.RawTimes()
	assert.Equal(t, RawTime{Year: 2013, DayOfYear: 1, Hour: 0}, raw[2])
	assert.Equal(t, RawTime{Year: 2013, DayOfYear: 1, Hour: 1}, raw[3])
	// Rows with real time fields keep them, even when they are wrong.
	assert.Equal(t, RawTime{Year: 1900, DayOfYear: 1, Hour: 5}, raw[1])

	swout, err := d.Extract(context.Background(), "SWout")
	require.NoError(t, err)
	assert.Equal(t, 11.0, swout[1])
	assert.True(t, math.IsNaN(swout[2]))
	assert.True(t, math.IsNaN(swout[3]))
	assert.Equal(t, 14.0, swout[4])

	// The short fallback row is invalid because of its time, not its length.
	assert.Equal(t, 0, d.RowFormatErrors())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		d, err := Load(context.Background(), filepath.Join(dir, "nope.txt"))
		assert.Nil(t, d)
		assert.ErrorIs(t, err, models.ErrMissingFile)
	})

	t.Run("bad header", func(t *testing.T) {
		logger, buf := bufferLogger()
		path := writeSEB(t, "S5_SEB_2003_2019_rp10b.txt", "date time Gs", "2004 1 0")
		d, err := Load(context.Background(), path, WithLogger(logger))
		assert.Nil(t, d)
		assert.ErrorIs(t, err, models.ErrHeaderFormat)
		assert.Contains(t, buf.String(), "DATASET_LOAD_ERROR")
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeSEB(t, "empty.txt")
		_, err := Load(context.Background(), path)
		assert.ErrorIs(t, err, models.ErrHeaderFormat)
	})

	t.Run("header only", func(t *testing.T) {
		path := writeSEB(t, "only.txt", "year day hour Gs")
		_, err := Load(context.Background(), path)
		assert.ErrorIs(t, err, models.ErrNoData)
	})

	t.Run("unseeded axis", func(t *testing.T) {
		path := writeSEB(t, "seed.txt", "year day hour Gs", "-999 -999 -999 1", "2004 1 1 2")
		_, err := Load(context.Background(), path)
		assert.ErrorIs(t, err, models.ErrTimeSeed)
	})
}

func TestLoad_RowFormatErrorOutsideS6(t *testing.T) {
	logger, buf := bufferLogger()
	reg := prometheus.NewRegistry()
	mc := metrics.NewCollector("seb", reg)

	path := writeSEB(t, "S5_SEB_2003_2019_rp10b.txt",
		"year day hour A B",
		"2005 10 0 1 2",
		"2005 10 1 3",
		"2005 10 2 4 5 6",
		"2005 10 3 x 7",
		"2005 10 4 8 9",
	)

	d, err := Load(context.Background(), path, WithLogger(logger), WithMetrics(mc))
	require.NoError(t, err)
	assert.Equal(t, 5, d.Len())
	assert.Equal(t, 3, d.RowFormatErrors())

	a, err := d.Extract(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0, 8}, a)
	assert.Equal(t, []int{2, 1, 3, 2, 2}, d.ValuesPerSample())

	assert.Contains(t, buf.String(), "DATASET_ROW_FORMAT")
	assert.Equal(t, 3.0, testutil.ToFloat64(mc.RowFormatErrorsTotal.WithLabelValues("S5")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.DatasetLoadsTotal.WithLabelValues("S5", "ok")))
}

func TestLoad_UnknownStation(t *testing.T) {
	logger, buf := bufferLogger()
	path := writeSEB(t, "S11_SEB_2020.txt", "year day hour A", "2020 1 0 1")

	d, err := Load(context.Background(), path, WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, StationUnknown, d.Station())
	assert.Contains(t, buf.String(), "not been vetted")

	err = d.CorrectGroundHeatFlux(context.Background())
	assert.ErrorIs(t, err, models.ErrNotApplicable)
}

func TestExtract_Failures(t *testing.T) {
	path := writeSEB(t, "S9_SEB_2003_2019_5.txt", "year day hour A", "2011 1 0 1", "2011 1 1 2")
	reg := prometheus.NewRegistry()
	mc := metrics.NewCollector("seb", reg)
	d, err := Load(context.Background(), path, WithMetrics(mc))
	require.NoError(t, err)

	series, err := d.Extract(context.Background(), "a")
	assert.Nil(t, series, "lookup is case sensitive")
	assert.ErrorIs(t, err, models.ErrVariableNotFound)

	nan, err := d.ExtractOrNaN(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrVariableNotFound)
	require.Len(t, nan, 2)
	assert.True(t, math.IsNaN(nan[0]))
	assert.True(t, math.IsNaN(nan[1]))

	ok, err := d.ExtractOrNaN(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, ok)

	assert.Equal(t, 2.0, testutil.ToFloat64(mc.LookupFailuresTotal.WithLabelValues("variable_not_found")))
}

// s6Names puts the variables of the Gs balance first and pads the catalog
// past the erasure threshold.
func s6Names() []string {
	names := []string{"SWnet_corr", "SumDivQ", "LWnet_model", "Hsen", "Hlat", "rest_energy", "melt_energy", "Gs"}
	for len(names) < 53 {
		names = append(names, fmt.Sprintf("v%02d", len(names)))
	}
	return names
}

func s6Row(year, day, hour int, base []float64, extra int) string {
	fields := []string{fmt.Sprint(year), fmt.Sprint(day), fmt.Sprint(hour), "0"}
	for _, v := range base {
		fields = append(fields, fmt.Sprint(v))
	}
	for k := len(base); k < 53+extra; k++ {
		fields = append(fields, fmt.Sprint(k))
	}
	return strings.Join(fields, " ")
}

func loadS6(t *testing.T) *Dataset {
	t.Helper()
	base := []float64{100, 10, -50, 20, -5, 1, 30, 999}
	path := writeSEB(t, "S6_SEB_2003_2019_rp4.txt",
		"year day hour Time "+strings.Join(s6Names(), " "),
		s6Row(2003, 120, 0, base, 0),
		s6Row(2003, 120, 1, base, 1),
		s6Row(2003, 120, 2, base, 0),
	)
	d, err := Load(context.Background(), path)
	require.NoError(t, err)
	return d
}

func TestLoad_S6ToleratesExtraColumnAndErasesTail(t *testing.T) {
	d := loadS6(t)
	assert.Equal(t, StationS6, d.Station())
	assert.Equal(t, 0, d.RowFormatErrors())
	assert.Equal(t, []int{53, 54, 53}, d.ValuesPerSample())

	vars := d.Variables()
	require.Len(t, vars, 53)
	for _, v := range vars {
		assert.Equal(t, v.Index >= 51, v.Erased, v.Name)
	}

	_, err := d.Extract(context.Background(), "v51")
	assert.ErrorIs(t, err, models.ErrErasedVariable)
	nan, err := d.ExtractOrNaN(context.Background(), "v52")
	assert.ErrorIs(t, err, models.ErrErasedVariable)
	assert.True(t, math.IsNaN(nan[0]))

	// Erasure hides the data; the stored numbers stay.
	assert.Equal(t, 51.0, d.data.At(51, 0))

	v50, err := d.Extract(context.Background(), "v50")
	require.NoError(t, err)
	assert.Equal(t, []float64{50, 50, 50}, v50)
}

func TestCorrectGroundHeatFlux(t *testing.T) {
	d := loadS6(t)
	ctx := context.Background()

	before, err := d.Extract(ctx, "Gs")
	require.NoError(t, err)
	assert.Equal(t, 999.0, before[0])

	require.NoError(t, d.CorrectGroundHeatFlux(ctx))
	gs, err := d.Extract(ctx, "Gs")
	require.NoError(t, err)
	// -100 + 10 + 50 - 20 + 5 + 1 + 30
	assert.Equal(t, []float64{-24, -24, -24}, gs)

	require.NoError(t, d.CorrectGroundHeatFlux(ctx))
	again, err := d.Extract(ctx, "Gs")
	require.NoError(t, err)
	assert.Equal(t, gs, again)
}

func TestCorrectGroundHeatFlux_OtherStation(t *testing.T) {
	path := writeSEB(t, "S5_SEB_2003_2019_rp10b.txt", "year day hour Gs", "2004 1 0 3")
	d, err := Load(context.Background(), path)
	require.NoError(t, err)

	err = d.CorrectGroundHeatFlux(context.Background())
	assert.ErrorIs(t, err, models.ErrNotApplicable)

	gs, err := d.Extract(context.Background(), "Gs")
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, gs)
}

func TestStationForFile(t *testing.T) {
	assert.Equal(t, StationS6, StationForFile("S6_SEB_2003_2019_rp4.txt"))
	assert.Equal(t, StationS10, StationForFile("S10_SEB_2009_2019.txt"))
	assert.Equal(t, StationUnknown, StationForFile("s6_seb_2003_2019_rp4.txt"))
	assert.Equal(t, StationS9, ParseStation("S9"))
	assert.Equal(t, StationUnknown, ParseStation("S7"))
	assert.Equal(t, "S5_SEB_2003_2019_rp10b.txt", StationS5.FileName())
	assert.Equal(t, "", StationUnknown.FileName())
}

// Package aggregate reduces regular SEB series to daily, monthly and
// climatological monthly means. Only complete periods are reported: partial
// leading and trailing periods are dropped.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"seb-platform/internal/models"
)

const day = 24 * time.Hour

// ClimatologySlots is the length of a climatology: December, January ..
// December, January.
const ClimatologySlots = 14

var (
	ErrLengthMismatch = errors.New("series and time axis differ in length")
	ErrIrregularStep  = errors.New("time step does not divide a day")
)

// Aggregate is a reduced series with the start instant of each period
type Aggregate struct {
	Values []float64
	Starts []time.Time
}

// Len is the number of periods
func (a Aggregate) Len() int { return len(a.Values) }

func insufficient(msg string, args ...interface{}) error {
	return &models.DatasetError{Kind: models.KindInsufficientData, Message: fmt.Sprintf(msg, args...)}
}

// stepOf validates the inputs and returns the axis step.
func stepOf(series []float64, axis []time.Time) (time.Duration, error) {
	if len(series) != len(axis) {
		return 0, fmt.Errorf("%w: %d values, %d instants", ErrLengthMismatch, len(series), len(axis))
	}
	if len(axis) < 2 {
		return 0, insufficient("need at least two samples, got %d", len(axis))
	}
	step := axis[1].Sub(axis[0])
	if step <= 0 {
		return 0, fmt.Errorf("time axis is not increasing: %v", step)
	}
	return step, nil
}

// DailyAverage averages each whole calendar day of series. The first day
// starts at the first midnight at or after axis[0]; for hourly data that is
// (24 - hour) mod 24 samples in. A trailing partial day is dropped.
func DailyAverage(series []float64, axis []time.Time) (Aggregate, error) {
	step, err := stepOf(series, axis)
	if err != nil {
		return Aggregate{}, err
	}
	if step > day || day%step != 0 {
		return Aggregate{}, fmt.Errorf("%w: %v", ErrIrregularStep, step)
	}
	perDay := int(day / step)

	offset := 0
	if start := dayStart(axis[0]); !start.Equal(axis[0]) {
		offset = samplesUntil(axis[0], start.Add(day), step)
	}

	days := 0
	if len(series) > offset {
		days = (len(series) - offset) / perDay
	}
	if days < 1 {
		return Aggregate{}, insufficient("no complete day in %d samples after an offset of %d", len(series), offset)
	}

	out := Aggregate{
		Values: make([]float64, days),
		Starts: make([]time.Time, days),
	}
	for d := 0; d < days; d++ {
		lo := offset + d*perDay
		out.Values[d] = stat.Mean(series[lo:lo+perDay], nil)
		out.Starts[d] = axis[lo]
	}
	return out, nil
}

// MonthlyAverage averages each whole calendar month of series, starting at
// the first month boundary at or after axis[0] and stopping before a
// trailing partial month.
func MonthlyAverage(series []float64, axis []time.Time) (Aggregate, error) {
	step, err := stepOf(series, axis)
	if err != nil {
		return Aggregate{}, err
	}

	first := monthStart(axis[0])
	if !first.Equal(axis[0]) {
		first = NextMonthStart(axis[0])
	}

	var out Aggregate
	n := len(series)
	for ms := samplesUntil(axis[0], first, step); ms < n; {
		start := axis[ms]
		me := ms + samplesUntil(start, NextMonthStart(start), step)
		if me > n {
			break
		}
		out.Values = append(out.Values, stat.Mean(series[ms:me], nil))
		out.Starts = append(out.Starts, start)
		ms = me
	}
	if out.Len() == 0 {
		return Aggregate{}, insufficient("no complete calendar month in %d samples from %s", n, axis[0].Format(time.RFC3339))
	}
	return out, nil
}

// Climatology is the typical annual cycle of a variable
type Climatology struct {
	// Values holds the mean per calendar month at index 1..12; index 0
	// repeats December and index 13 repeats January.
	Values [ClimatologySlots]float64
	// Counts is the number of months with data behind each mean, by month
	// number 1..12. Index 0 is unused.
	Counts [13]int
}

// Aggregate lays the climatology out as a series, with placeholder
// period starts from models.ClimatologySlotDate.
func (c Climatology) Aggregate() Aggregate {
	out := Aggregate{
		Values: make([]float64, ClimatologySlots),
		Starts: make([]time.Time, ClimatologySlots),
	}
	for slot := 0; slot < ClimatologySlots; slot++ {
		out.Values[slot] = c.Values[slot]
		out.Starts[slot] = models.ClimatologySlotDate(slot)
	}
	return out
}

// ClimatologicalMonthlyAverage averages the complete monthly means of all
// years per calendar month. Months whose mean is NaN do not count. A
// calendar month without any data gets NaN.
func ClimatologicalMonthlyAverage(series []float64, axis []time.Time) (Climatology, error) {
	monthly, err := MonthlyAverage(series, axis)
	if err != nil {
		return Climatology{}, err
	}
	return climatologyOf(monthly), nil
}

func climatologyOf(monthly Aggregate) Climatology {
	var (
		c    Climatology
		sums [13]float64
	)
	for k, v := range monthly.Values {
		if math.IsNaN(v) {
			continue
		}
		m := int(monthly.Starts[k].Month())
		sums[m] += v
		c.Counts[m]++
	}
	for m := 1; m <= 12; m++ {
		if c.Counts[m] == 0 {
			c.Values[m] = math.NaN()
			continue
		}
		c.Values[m] = sums[m] / float64(c.Counts[m])
	}
	c.Values[0] = c.Values[12]
	c.Values[13] = c.Values[1]
	return c
}

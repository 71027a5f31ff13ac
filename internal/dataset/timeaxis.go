package dataset

import (
	"time"

	"seb-platform/internal/models"
)

// sentinelYear in the year column flags a row whose time fields are unusable
const sentinelYear = int(models.SentinelValue)

// RawTime is the (year, day-of-year, hour) triple of one sample as read from
// the file, or back-filled from the time axis for fallback rows.
type RawTime struct {
	Year      int
	DayOfYear int
	Hour      int
}

// Fallback reports whether the row carried the sentinel year
func (r RawTime) Fallback() bool {
	return r.Year == sentinelYear
}

// Time converts the triple to an instant: January 1 of Year, plus
// DayOfYear-1 days, plus Hour hours.
func (r RawTime) Time() time.Time {
	return time.Date(r.Year, time.January, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, r.DayOfYear-1).
		Add(time.Duration(r.Hour) * time.Hour)
}

func rawTimeAt(t time.Time) RawTime {
	return RawTime{Year: t.Year(), DayOfYear: t.YearDay(), Hour: t.Hour()}
}

// ReconstructAxis builds the regular time axis of a file. Only raw[0] is
// trusted: every later instant is its predecessor plus step, whatever the row
// says. Rows carrying the sentinel year get their raw triple overwritten from
// the axis and are reported invalid in the returned flags.
func ReconstructAxis(raw []RawTime, step time.Duration) ([]time.Time, []bool, error) {
	if len(raw) == 0 {
		return nil, nil, nil
	}
	if raw[0].Fallback() {
		return nil, nil, &models.DatasetError{
			Kind:    models.KindTimeSeed,
			Line:    2,
			Message: "first data row has no valid time stamp to seed the time axis",
		}
	}

	axis := make([]time.Time, len(raw))
	valid := make([]bool, len(raw))

	axis[0] = raw[0].Time()
	valid[0] = true
	for i := 1; i < len(raw); i++ {
		axis[i] = axis[i-1].Add(step)
		if raw[i].Fallback() {
			raw[i] = rawTimeAt(axis[i])
			continue
		}
		valid[i] = true
	}
	return axis, valid, nil
}

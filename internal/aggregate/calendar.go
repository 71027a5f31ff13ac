package aggregate

import "time"

// DayOfYear returns the 1-based ordinal day of the given date
func DayOfYear(year int, month time.Month, day int) int {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).YearDay()
}

// NextMonthStart returns midnight on the first day of the calendar month
// after t, in t's location.
func NextMonthStart(t time.Time) time.Time {
	if t.Month() == time.December {
		return time.Date(t.Year()+1, time.January, 1, 0, 0, 0, 0, t.Location())
	}
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// samplesUntil is the number of whole steps from t to boundary, rounded up.
func samplesUntil(t, boundary time.Time, step time.Duration) int {
	gap := boundary.Sub(t)
	if gap <= 0 {
		return 0
	}
	return int((gap + step - 1) / step)
}

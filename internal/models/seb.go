package models

import (
	"math"
	"time"
)

// SentinelValue marks missing data in SEB files
const SentinelValue = -999.0

// Period names the reduction an aggregate was produced by
type Period string

const (
	PeriodDaily       Period = "daily"
	PeriodMonthly     Period = "monthly"
	PeriodClimatology Period = "climatology"
)

// Valid reports whether p is one of the known periods
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodMonthly, PeriodClimatology:
		return true
	}
	return false
}

// Variable is one entry of a dataset's catalog
type Variable struct {
	Index  int    `json:"index" db:"var_index"`
	Name   string `json:"name" db:"name"`
	Erased bool   `json:"erased" db:"erased"`
}

// StationRecord describes a loaded SEB file
type StationRecord struct {
	StationID       string    `json:"station_id" db:"station_id"`
	FileName        string    `json:"file_name" db:"file_name"`
	TimeStepSeconds int       `json:"time_step_seconds" db:"time_step_seconds"`
	SampleCount     int       `json:"sample_count" db:"sample_count"`
	FirstSample     time.Time `json:"first_sample" db:"first_sample"`
	LastSample      time.Time `json:"last_sample" db:"last_sample"`
	Version         string    `json:"version" db:"version"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// AggregateRecord is one aggregated value. NaN averages are stored as NULL.
// Climatology rows carry a placeholder date per slot, see ClimatologySlotDate.
type AggregateRecord struct {
	ID          int64     `json:"id" db:"id"`
	StationID   string    `json:"station_id" db:"station_id"`
	Variable    string    `json:"variable" db:"variable"`
	Period      Period    `json:"period" db:"period"`
	PeriodStart time.Time `json:"period_start" db:"period_start"`
	Value       *float64  `json:"value" db:"value"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// NullableFloat maps NaN and ±Inf to nil
func NullableFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ClimatologyYear is the placeholder year of climatology slots 1..12
const ClimatologyYear = 2000

// ClimatologySlotDate gives the stored period_start of climatology slot 0..13:
// slot 0 is December of the year before ClimatologyYear, slots 1..12 are the
// months of ClimatologyYear and slot 13 is January of the year after.
func ClimatologySlotDate(slot int) time.Time {
	return time.Date(ClimatologyYear-1, time.December, 1, 0, 0, 0, 0, time.UTC).AddDate(0, slot, 0)
}

// ClimatologySlot is the inverse of ClimatologySlotDate
func ClimatologySlot(t time.Time) int {
	return (t.Year()-(ClimatologyYear-1))*12 + int(t.Month()) - int(time.December)
}

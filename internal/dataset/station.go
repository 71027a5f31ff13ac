package dataset

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"seb-platform/pkg/logging"
)

// Station identifies which of the known K-transect files a dataset came from.
// The set is closed: every file maps to exactly one value, unknown files to
// StationUnknown, and each value owns its load-time repair.
type Station int

const (
	StationUnknown Station = iota
	StationS5
	StationS6
	StationS9
	StationS10
)

var stationFiles = map[string]Station{
	"S5_SEB_2003_2019_rp10b.txt": StationS5,
	"S6_SEB_2003_2019_rp4.txt":   StationS6,
	"S9_SEB_2003_2019_5.txt":     StationS9,
	"S10_SEB_2009_2019.txt":      StationS10,
}

// StationForFile selects the station variant from a base file name
func StationForFile(fileName string) Station {
	if s, ok := stationFiles[fileName]; ok {
		return s
	}
	return StationUnknown
}

// ParseStation maps a station code such as "S6" onto its variant
func ParseStation(code string) Station {
	for _, s := range []Station{StationS5, StationS6, StationS9, StationS10} {
		if s.String() == code {
			return s
		}
	}
	return StationUnknown
}

func (s Station) String() string {
	switch s {
	case StationS5:
		return "S5"
	case StationS6:
		return "S6"
	case StationS9:
		return "S9"
	case StationS10:
		return "S10"
	default:
		return "unknown"
	}
}

// FileName is the canonical file of a known station, empty for StationUnknown
func (s Station) FileName() string {
	for name, st := range stationFiles {
		if st == s {
			return name
		}
	}
	return ""
}

// lenientRows reports whether rows with the wrong number of values are
// accepted as they come. Only the S6 file has such rows; the load-time repair
// puts the columns back in place.
func (s Station) lenientRows() bool {
	return s == StationS6
}

// repair applies the station's fixed post-load corrections
func (s Station) repair(ctx context.Context, d *Dataset) {
	switch s {
	case StationS6:
		d.log.Info(ctx, "[DATASET_REPAIR] Applying S6 data corrections", nil)
		s6Corrections.apply(ctx, d)
		d.log.Info(ctx, "[DATASET_REPAIR] Ground heat flux is unreliable, call CorrectGroundHeatFlux", logging.Fields{
			"variable": gsVariable,
		})
	case StationS5, StationS9, StationS10:
		d.log.Info(ctx, "[DATASET_REPAIR] No data corrections needed for this station", nil)
	default:
		d.log.Warn(ctx, "[DATASET_REPAIR] No corrections known for this file, it has not been vetted", nil)
	}
}

// s6Repair holds the corrections of the hourly S6 file. The values are what
// was found by inspecting that file; they are not a general anomaly rule.
type s6Repair struct {
	// gapSamples are maintenance gaps the logger did not flag as missing.
	gapSamples []int
	// shiftFromVar is the first variable row that moves one row down from
	// shiftOffset onward, where a column disappears from the file. Row
	// shiftFromVar-1 is left empty.
	shiftFromVar int
	shiftOffset  int
	// eraseFrom is the first variable index whose data is inconsistent.
	eraseFrom int
}

var s6Corrections = s6Repair{
	gapSamples:   []int{17270, 17271, 17273, 17274},
	shiftFromVar: 29,
	shiftOffset:  114288,
	eraseFrom:    51,
}

func (r s6Repair) apply(ctx context.Context, d *Dataset) {
	station := d.station.String()

	blanked := blankSamples(d.data, r.gapSamples)
	d.log.Info(ctx, "[DATASET_REPAIR] Blanked unflagged maintenance gaps", logging.Fields{
		"samples": blanked,
	})
	if len(blanked) < len(r.gapSamples) {
		d.log.Warn(ctx, "[DATASET_REPAIR] Some gap samples lie outside the file", logging.Fields{
			"expected": r.gapSamples,
			"applied":  blanked,
		})
	}
	d.metrics.recordRepair(station, "blank_gaps")

	if shiftVariableRows(d.data, r.shiftFromVar, r.shiftOffset) {
		d.log.Info(ctx, "[DATASET_REPAIR] Shifted variables after vanished column", logging.Fields{
			"from_variable": r.shiftFromVar,
			"from_sample":   r.shiftOffset,
		})
		d.metrics.recordRepair(station, "shift_columns")
	} else {
		d.log.Warn(ctx, "[DATASET_REPAIR] Column shift does not fit the loaded matrix, skipped", logging.Fields{
			"from_variable": r.shiftFromVar,
			"from_sample":   r.shiftOffset,
		})
	}

	if r.eraseFrom < len(d.variables) {
		d.eraseFrom(r.eraseFrom)
		d.log.Warn(ctx, "[DATASET_REPAIR] Discarding inconsistent variables", logging.Fields{
			"first_index":    r.eraseFrom,
			"first_variable": d.variables[r.eraseFrom],
			"count":          len(d.variables) - r.eraseFrom,
		})
		d.metrics.recordRepair(station, "erase_tail")
	}
}

// blankSamples sets every variable of the listed samples to NaN and returns
// the samples that were inside the matrix.
func blankSamples(m *mat.Dense, samples []int) []int {
	nvar, nval := m.Dims()
	applied := make([]int, 0, len(samples))
	for _, s := range samples {
		if s < 0 || s >= nval {
			continue
		}
		for v := 0; v < nvar; v++ {
			m.Set(v, s, math.NaN())
		}
		applied = append(applied, s)
	}
	return applied
}

// shiftVariableRows moves rows fromVar..nvar-2 to fromVar+1..nvar-1 for
// samples offset and later, and sets row fromVar-1 to NaN over the same
// range. The last row's former content is dropped. It reports false, leaving
// m untouched, when fromVar or offset fall outside m.
func shiftVariableRows(m *mat.Dense, fromVar, offset int) bool {
	nvar, nval := m.Dims()
	if fromVar < 1 || fromVar >= nvar || offset < 0 || offset >= nval {
		return false
	}
	for v := nvar - 1; v >= fromVar; v-- {
		copy(m.RawRowView(v)[offset:], m.RawRowView(v - 1)[offset:])
	}
	vacated := m.RawRowView(fromVar - 1)[offset:]
	for i := range vacated {
		vacated[i] = math.NaN()
	}
	return true
}

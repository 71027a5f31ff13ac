// Package dataset loads the SEB model output files of the K-transect
// stations, repairs their known defects and serves variables as series on a
// regular time axis.
package dataset

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"seb-platform/internal/models"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

// Version of the loader and its repair set
const Version = "1.1"

// Names of the variables the ground heat flux correction reads and writes.
const (
	gsVariable         = "Gs"
	swNetVariable      = "SWnet_corr"
	swInternalVariable = "SumDivQ"
	lwNetVariable      = "LWnet_model"
	sensibleVariable   = "Hsen"
	latentVariable     = "Hlat"
	residualVariable   = "rest_energy"
	meltEnergyVariable = "melt_energy"
)

// Dataset holds one SEB file after loading and repair. It is not safe for
// concurrent use while CorrectGroundHeatFlux runs.
type Dataset struct {
	fileName string
	station  Station
	header   Header

	variables []string
	erased    []bool

	// data is nvar x nval, one row per variable.
	data *mat.Dense

	axis            []time.Time
	raw             []RawTime
	sampleValid     []bool
	valuesPerSample []int
	rowErrors       int

	log     *logging.ContextLogger
	metrics collector
}

// Option configures Load
type Option func(*loadOptions)

type loadOptions struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// WithLogger sends load and lookup diagnostics to logger
func WithLogger(logger *logging.StructuredLogger) Option {
	return func(o *loadOptions) { o.logger = logger }
}

// WithMetrics records load and lookup counters on c
func WithMetrics(c *metrics.Collector) Option {
	return func(o *loadOptions) { o.metrics = c }
}

// Load reads the SEB file at path, rebuilds its time axis, turns sentinel
// values into NaN and applies the repair of the station the file name
// identifies. Failures that leave no usable dataset come back as
// *models.DatasetError with a fatal kind; problems in single rows are
// logged and recovered.
func Load(ctx context.Context, path string, opts ...Option) (*Dataset, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}

	fileName := filepath.Base(path)
	station := StationForFile(fileName)
	ctx = logging.WithStation(ctx, station.String())
	log := o.logger.WithFields(logging.Fields{"file": fileName})
	mc := collector{c: o.metrics}

	timer := time.Now()
	d, err := load(ctx, path, fileName, station, log, mc)
	mc.observeLoad(time.Since(timer))
	if err != nil {
		var derr *models.DatasetError
		outcome := "error"
		if errors.As(err, &derr) {
			outcome = string(derr.Kind)
		}
		mc.recordLoad(station.String(), outcome)
		log.Error(ctx, "[DATASET_LOAD_ERROR] SEB file could not be loaded", logging.Fields{
			"path": path,
		}, err)
		return nil, err
	}
	mc.recordLoad(station.String(), "ok")
	return d, nil
}

func load(ctx context.Context, path, fileName string, station Station, log *logging.ContextLogger, mc collector) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &models.DatasetError{
			Kind:    models.KindMissingFile,
			File:    path,
			Message: "SEB data file does not exist",
			Err:     err,
		}
	}

	header, nval, err := scanHeader(path)
	if err != nil {
		var derr *models.DatasetError
		if errors.As(err, &derr) {
			derr.File = fileName
			return nil, derr
		}
		return nil, err
	}
	if nval == 0 {
		return nil, &models.DatasetError{Kind: models.KindNoData, File: fileName, Message: "file has a header but no data rows"}
	}

	nvar := len(header.Variables)
	log.Info(ctx, "[DATASET_LOAD_START] Reading SEB file", logging.Fields{
		"rows":      nval,
		"variables": nvar,
		"hourly":    header.Hourly,
	})

	d := &Dataset{
		fileName:        fileName,
		station:         station,
		header:          header,
		variables:       header.Variables,
		erased:          make([]bool, nvar),
		raw:             make([]RawTime, nval),
		valuesPerSample: make([]int, nval),
		log:             log,
		metrics:         mc,
	}

	// Values are collected per sample into a variable-major buffer so the
	// matrix can take it over without copying.
	buf := make([]float64, nvar*nval)
	row := make([]float64, nvar)
	lenient := station.lenientRows()

	err = readRecords(path, func(i, lineNo int, tokens []string) {
		if i >= nval {
			return
		}
		raw, terr := parseRawTime(tokens, header.TimeFields)
		if terr != nil {
			// Without a time stamp the row is handled like a sentinel-year row.
			raw = RawTime{Year: sentinelYear}
			d.rowFormatError(ctx, lineNo, terr)
		}
		d.raw[i] = raw

		for k := range row {
			row[k] = 0
		}
		var values []string
		if len(tokens) > header.ValueOffset {
			values = tokens[header.ValueOffset:]
		}
		// Fallback rows end up all NaN, so their values are not looked at.
		if terr == nil && !raw.Fallback() {
			n, verr := parseValues(row, values, lenient)
			d.valuesPerSample[i] = n
			if verr != nil {
				d.rowFormatError(ctx, lineNo, verr)
			} else if n != nvar {
				log.Debug(ctx, "[DATASET_ROW_TOLERATED] Row value count differs, accepted for this station", logging.Fields{
					"line":   lineNo,
					"values": n,
				})
			}
		}
		for v := 0; v < nvar; v++ {
			buf[v*nval+i] = row[v]
		}
	})
	if err != nil {
		return nil, err
	}

	axis, valid, err := ReconstructAxis(d.raw, header.Step)
	if err != nil {
		var derr *models.DatasetError
		if errors.As(err, &derr) {
			derr.File = fileName
		}
		return nil, err
	}
	d.axis = axis
	d.sampleValid = valid

	for i, ok := range valid {
		if ok {
			continue
		}
		for v := 0; v < nvar; v++ {
			buf[v*nval+i] = math.NaN()
		}
	}
	for k, v := range buf {
		if v == models.SentinelValue {
			buf[k] = math.NaN()
		}
	}
	d.data = mat.NewDense(nvar, nval, buf)

	mc.recordRows(station.String(), nval, d.rowErrors)
	log.Info(ctx, "[DATASET_READ] Reading completed", logging.Fields{
		"rows":              nval,
		"row_format_errors": d.rowErrors,
		"first_sample":      axis[0].Format(time.RFC3339),
		"last_sample":       axis[nval-1].Format(time.RFC3339),
	})

	station.repair(ctx, d)
	return d, nil
}

func (d *Dataset) rowFormatError(ctx context.Context, lineNo int, err error) {
	d.rowErrors++
	d.log.WarnErr(ctx, "[DATASET_ROW_FORMAT] Unexpected row layout, row left empty", logging.Fields{
		"line": lineNo,
	}, &models.DatasetError{Kind: models.KindRowFormat, File: d.fileName, Line: lineNo, Err: err})
}

func (d *Dataset) eraseFrom(index int) {
	for v := index; v < len(d.erased); v++ {
		d.erased[v] = true
	}
}

// FileName is the base name of the loaded file
func (d *Dataset) FileName() string { return d.fileName }

// Station is the variant selected from the file name
func (d *Dataset) Station() Station { return d.station }

// Version identifies the loader that produced the dataset
func (d *Dataset) Version() string { return "SEB_hourly_data version " + Version }

// Hourly reports whether samples are one hour apart (otherwise one day)
func (d *Dataset) Hourly() bool { return d.header.Hourly }

// TimeStep is the fixed distance between samples
func (d *Dataset) TimeStep() time.Duration { return d.header.Step }

// Len is the number of samples
func (d *Dataset) Len() int { return len(d.axis) }

// RowFormatErrors counts rows that were left empty because of their layout
func (d *Dataset) RowFormatErrors() int { return d.rowErrors }

// Times returns a copy of the time axis
func (d *Dataset) Times() []time.Time {
	return append([]time.Time(nil), d.axis...)
}

// RawTimes returns the per-sample time fields, back-filled for fallback rows
func (d *Dataset) RawTimes() []RawTime {
	return append([]RawTime(nil), d.raw...)
}

// SampleValid returns the per-sample validity flags
func (d *Dataset) SampleValid() []bool {
	return append([]bool(nil), d.sampleValid...)
}

// ValuesPerSample returns how many value tokens each row carried
func (d *Dataset) ValuesPerSample() []int {
	return append([]int(nil), d.valuesPerSample...)
}

// Variables lists the catalog in column order
func (d *Dataset) Variables() []models.Variable {
	out := make([]models.Variable, len(d.variables))
	for i, name := range d.variables {
		out[i] = models.Variable{Index: i, Name: name, Erased: d.erased[i]}
	}
	return out
}

// index finds a variable by exact, whitespace-trimmed name. Later duplicates win.
func (d *Dataset) index(name string) int {
	idx := -1
	want := strings.TrimSpace(name)
	for i, v := range d.variables {
		if strings.TrimSpace(v) == want {
			idx = i
		}
	}
	return idx
}

func (d *Dataset) lookup(ctx context.Context, name string) (int, error) {
	idx := d.index(name)
	if idx < 0 {
		d.metrics.recordLookupFailure(string(models.KindVariableNotFound))
		err := &models.DatasetError{Kind: models.KindVariableNotFound, File: d.fileName, Variable: name, Message: "variable not found"}
		d.log.WarnErr(ctx, "[DATASET_LOOKUP] Variable not found", logging.Fields{"variable": name}, err)
		return -1, err
	}
	if d.erased[idx] {
		d.metrics.recordLookupFailure(string(models.KindErasedVariable))
		err := &models.DatasetError{Kind: models.KindErasedVariable, File: d.fileName, Variable: name, Message: "data erased due to consistency problems"}
		d.log.WarnErr(ctx, "[DATASET_LOOKUP] Variable has been erased, no data is provided", logging.Fields{"variable": name}, err)
		return idx, err
	}
	return idx, nil
}

// Extract returns a copy of a variable's series. A missing or erased
// variable yields no series and an error of kind variable_not_found or
// erased_variable.
func (d *Dataset) Extract(ctx context.Context, name string) ([]float64, error) {
	idx, err := d.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return mat.Row(nil, idx, d.data), nil
}

// ExtractOrNaN behaves like Extract but answers a failed lookup with an
// all-NaN series of the dataset's length, alongside the error.
func (d *Dataset) ExtractOrNaN(ctx context.Context, name string) ([]float64, error) {
	series, err := d.Extract(ctx, name)
	if err == nil {
		return series, nil
	}
	nan := make([]float64, d.Len())
	for i := range nan {
		nan[i] = math.NaN()
	}
	return nan, err
}

// CorrectGroundHeatFlux recomputes Gs as the residual of the energy balance,
// assuming every other reported flux is right:
//
//	Gs = -SWnet_corr + SumDivQ - LWnet_model - Hsen - Hlat + rest_energy + melt_energy
//
// Only the S6 file needs it; other stations get a not_applicable error and no
// change. The result depends on the other variables only, so calling it again
// gives the same Gs.
func (d *Dataset) CorrectGroundHeatFlux(ctx context.Context) error {
	if d.station != StationS6 {
		err := &models.DatasetError{
			Kind:     models.KindNotApplicable,
			File:     d.fileName,
			Variable: gsVariable,
			Message:  "ground heat flux correction only applies to station S6",
		}
		d.log.WarnErr(ctx, "[DATASET_GS] Correction not applied", nil, err)
		return err
	}

	terms := []struct {
		name string
		sign float64
	}{
		{swNetVariable, -1},
		{swInternalVariable, 1},
		{lwNetVariable, -1},
		{sensibleVariable, -1},
		{latentVariable, -1},
		{residualVariable, 1},
		{meltEnergyVariable, 1},
	}

	gs := make([]float64, d.Len())
	for _, term := range terms {
		series, err := d.Extract(ctx, term.name)
		if err != nil {
			return err
		}
		for i, v := range series {
			gs[i] += term.sign * v
		}
	}

	idx := d.index(gsVariable)
	if idx < 0 {
		d.metrics.recordLookupFailure(string(models.KindVariableNotFound))
		return &models.DatasetError{Kind: models.KindVariableNotFound, File: d.fileName, Variable: gsVariable, Message: "variable not found"}
	}
	d.data.SetRow(idx, gs)

	d.log.Info(ctx, "[DATASET_GS] Ground heat flux recomputed from the energy balance", logging.Fields{
		"variable_index": idx,
	})
	d.metrics.recordRepair(d.station.String(), "gs_residual")
	return nil
}

// collector wraps the optional metrics collector
type collector struct {
	c *metrics.Collector
}

func (m collector) observeLoad(d time.Duration) {
	if m.c != nil {
		m.c.DatasetLoadDuration.Observe(d.Seconds())
	}
}

func (m collector) recordLoad(station, outcome string) {
	if m.c != nil {
		m.c.RecordDatasetLoad(station, outcome)
	}
}

func (m collector) recordRows(station string, parsed, malformed int) {
	if m.c != nil {
		m.c.RecordRows(station, parsed, malformed)
	}
}

func (m collector) recordRepair(station, repair string) {
	if m.c != nil {
		m.c.RecordRepair(station, repair)
	}
}

func (m collector) recordLookupFailure(reason string) {
	if m.c != nil {
		m.c.RecordLookupFailure(reason)
	}
}

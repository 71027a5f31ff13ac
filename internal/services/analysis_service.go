package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"seb-platform/internal/aggregate"
	"seb-platform/internal/config"
	"seb-platform/internal/dataset"
	"seb-platform/internal/models"
	"seb-platform/internal/physics"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

// PlotType selects how panel series are reduced
type PlotType string

const (
	// PlotAvgMonth is the typical annual cycle, 14 climatology slots
	PlotAvgMonth PlotType = "AvgMonth"
	// PlotMonthly is one value per complete calendar month
	PlotMonthly PlotType = "Monthly"
	// PlotDaily is one value per complete day
	PlotDaily PlotType = "Daily"
)

// ParsePlotType accepts the plot names case-insensitively
func ParsePlotType(s string) (PlotType, error) {
	for _, p := range []PlotType{PlotAvgMonth, PlotMonthly, PlotDaily} {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", &models.ValidationError{Field: "plot", Message: fmt.Sprintf("unknown plot type %q, want AvgMonth, Monthly or Daily", s)}
}

// Period is the stored aggregate period the plot type corresponds to
func (p PlotType) Period() models.Period {
	switch p {
	case PlotMonthly:
		return models.PeriodMonthly
	case PlotDaily:
		return models.PeriodDaily
	default:
		return models.PeriodClimatology
	}
}

// Reduction is a reduced series with x-axis labels
type Reduction struct {
	Labels []string
	Starts []time.Time
	Values []float64
}

// Reduce applies the reducer of plot to series
func Reduce(plot PlotType, series []float64, axis []time.Time) (Reduction, error) {
	var (
		agg    aggregate.Aggregate
		err    error
		layout string
	)
	switch plot {
	case PlotAvgMonth:
		var c aggregate.Climatology
		c, err = aggregate.ClimatologicalMonthlyAverage(series, axis)
		agg = c.Aggregate()
	case PlotMonthly:
		agg, err = aggregate.MonthlyAverage(series, axis)
		layout = "2006-01"
	case PlotDaily:
		agg, err = aggregate.DailyAverage(series, axis)
		layout = "2006-01-02"
	default:
		return Reduction{}, &models.ValidationError{Field: "plot", Message: fmt.Sprintf("unknown plot type %q", plot)}
	}
	if err != nil {
		return Reduction{}, err
	}

	r := Reduction{
		Labels: make([]string, agg.Len()),
		Starts: agg.Starts,
		Values: agg.Values,
	}
	for i, start := range agg.Starts {
		if plot == PlotAvgMonth {
			r.Labels[i] = strconv.Itoa(i)
			continue
		}
		r.Labels[i] = start.Format(layout)
	}
	return r, nil
}

// Line is one labelled series of a panel
type Line struct {
	Label  string
	Values []float64
}

// Panel holds the two SEB plots of a station for one plot type
type Panel struct {
	Station   string
	PlotType  PlotType
	Labels    []string
	Radiative []Line
	Surface   []Line
	// Missing lists the variables that could not be read; their lines are NaN.
	Missing []string
}

// WarmingResult compares cumulative melt with and without extra longwave
type WarmingResult struct {
	Station  string
	DeltaT   float64
	Times    []time.Time
	Observed []float64
	Warmed   []float64
}

// Totals returns the last defined cumulative melt of both runs, in m w.e.
func (w *WarmingResult) Totals() (observed, warmed float64) {
	return lastDefined(w.Observed), lastDefined(w.Warmed)
}

func lastDefined(s []float64) float64 {
	for i := len(s) - 1; i >= 0; i-- {
		if !math.IsNaN(s[i]) {
			return s[i]
		}
	}
	return math.NaN()
}

// AnalysisService opens station files and derives the analysis products
type AnalysisService struct {
	cfg     config.DataConfig
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(cfg config.DataConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalysisService {
	return &AnalysisService{
		cfg:     cfg,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// StationCodes lists the configured station codes in sorted order
func (s *AnalysisService) StationCodes() []string {
	return sortedKeys(s.cfg.Stations)
}

// OpenStation loads the file configured for a station code. For S6 the
// ground heat flux is rebuilt from the energy balance when CorrectGs is set.
func (s *AnalysisService) OpenStation(ctx context.Context, code string) (*dataset.Dataset, error) {
	path, err := s.cfg.StationPath(code)
	if err != nil {
		return nil, &models.ValidationError{Field: "station", Message: err.Error()}
	}
	return s.OpenFile(ctx, path)
}

// OpenFile loads an SEB file by path and applies the configured corrections
func (s *AnalysisService) OpenFile(ctx context.Context, path string) (*dataset.Dataset, error) {
	ds, err := dataset.Load(ctx, path, dataset.WithLogger(s.logger), dataset.WithMetrics(s.metrics))
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[ANALYSIS_OPEN] Station data loaded", logging.Fields{
		"station":     ds.Station().String(),
		"file":        ds.FileName(),
		"samples":     ds.Len(),
		"variables":   len(ds.Variables()),
		"row_errors":  ds.RowFormatErrors(),
		"time_step_s": ds.TimeStep().Seconds(),
	})

	if s.cfg.CorrectGs && ds.Station() == dataset.StationS6 {
		if err := ds.CorrectGroundHeatFlux(ctx); err != nil {
			return nil, fmt.Errorf("failed to correct ground heat flux: %w", err)
		}
	}
	return ds, nil
}

// ListVariables renders the catalog one line per variable, marking erased ones
func (s *AnalysisService) ListVariables(ds *dataset.Dataset) []string {
	vars := ds.Variables()
	out := make([]string, len(vars))
	for i, v := range vars {
		line := fmt.Sprintf("%3d %s", v.Index, v.Name)
		if v.Erased {
			line += "  ERASED"
		}
		out[i] = line
	}
	return out
}

// panelTerm is one line of the panel in terms of dataset variables
type panelTerm struct {
	label string
	terms []signedVar
}

type signedVar struct {
	name string
	sign float64
}

func plus(name string) signedVar  { return signedVar{name, 1} }
func minus(name string) signedVar { return signedVar{name, -1} }

func radiativeTerms(s6 bool) []panelTerm {
	terms := []panelTerm{
		{"SWdown", []signedVar{plus("SWin_corr")}},
		{"SWup", []signedVar{minus("SWout")}},
	}
	if s6 {
		terms = append(terms, panelTerm{"SWint", []signedVar{minus("SumDivQ")}})
	}
	terms = append(terms,
		panelTerm{"LWdown", []signedVar{plus("LWin")}},
		panelTerm{"LWup", []signedVar{minus("LWout_corr")}},
		panelTerm{"Rnet", []signedVar{plus("SWnet_corr"), plus("LWnet_model")}},
	)
	if s6 {
		terms = append(terms, panelTerm{"Rnet_surf", []signedVar{plus("SWnet_corr"), plus("LWnet_model"), minus("SumDivQ")}})
	}
	return terms
}

func surfaceTerms(s6 bool) []panelTerm {
	var terms []panelTerm
	if s6 {
		terms = append(terms, panelTerm{"SWnet_surf", []signedVar{plus("SWnet_corr"), minus("SumDivQ")}})
	} else {
		terms = append(terms, panelTerm{"SWnet", []signedVar{plus("SWnet_corr")}})
	}
	terms = append(terms,
		panelTerm{"LWnet", []signedVar{plus("LWnet_model")}},
		panelTerm{"SHF", []signedVar{plus("Hsen")}},
		panelTerm{"LHF", []signedVar{plus("Hlat")}},
		panelTerm{"Gs", []signedVar{plus("Gs")}},
		panelTerm{"M", []signedVar{plus("melt_energy")}},
		panelTerm{"Residual", []signedVar{plus("rest_energy")}},
	)
	if s6 {
		// Apparent subsurface flux with total instead of surface melt.
		terms = append(terms, panelTerm{"GsRec", []signedVar{
			plus("Gs"), minus("SumDivQ"), minus("melt_energy"), plus("totm_nrg"),
		}})
	}
	return terms
}

// seriesSource caches extracted variables and remembers failed lookups
type seriesSource struct {
	ds      *dataset.Dataset
	cache   map[string][]float64
	missing []string
}

func (src *seriesSource) get(ctx context.Context, name string) []float64 {
	if s, ok := src.cache[name]; ok {
		return s
	}
	s, err := src.ds.ExtractOrNaN(ctx, name)
	if err != nil {
		src.missing = append(src.missing, name)
	}
	src.cache[name] = s
	return s
}

func (src *seriesSource) combine(ctx context.Context, terms []signedVar) ([]float64, error) {
	parts := make([][]float64, len(terms))
	for i, t := range terms {
		parts[i] = physics.Scale(t.sign, src.get(ctx, t.name))
	}
	return physics.Sum(parts[0], parts[1:]...)
}

// Panel builds the radiative and surface energy panels of a dataset
func (s *AnalysisService) Panel(ctx context.Context, ds *dataset.Dataset, plot PlotType) (*Panel, error) {
	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues(string(plot.Period())))
	defer timer.ObserveDuration()

	s6 := ds.Station() == dataset.StationS6
	src := &seriesSource{ds: ds, cache: make(map[string][]float64)}
	axis := ds.Times()

	panel := &Panel{Station: ds.Station().String(), PlotType: plot}

	build := func(terms []panelTerm) ([]Line, error) {
		lines := make([]Line, 0, len(terms))
		for _, term := range terms {
			series, err := src.combine(ctx, term.terms)
			if err != nil {
				return nil, err
			}
			red, err := Reduce(plot, series, axis)
			if err != nil {
				return nil, fmt.Errorf("failed to reduce %s: %w", term.label, err)
			}
			if panel.Labels == nil {
				panel.Labels = red.Labels
			}
			lines = append(lines, Line{Label: term.label, Values: red.Values})
		}
		return lines, nil
	}

	var err error
	if panel.Radiative, err = build(radiativeTerms(s6)); err != nil {
		return nil, err
	}
	if panel.Surface, err = build(surfaceTerms(s6)); err != nil {
		return nil, err
	}
	panel.Missing = src.missing

	s.logger.Info(ctx, "[ANALYSIS_PANEL] SEB panel computed", logging.Fields{
		"station":   panel.Station,
		"plot_type": string(plot),
		"points":    len(panel.Labels),
		"missing":   len(panel.Missing),
	})
	return panel, nil
}

// Warming runs the longwave warming experiment on a dataset and integrates
// observed and warmed melt.
func (s *AnalysisService) Warming(ctx context.Context, ds *dataset.Dataset, deltaT float64) (*WarmingResult, error) {
	lwIn, err := ds.Extract(ctx, "LWin")
	if err != nil {
		return nil, err
	}
	lwNet, err := ds.Extract(ctx, "LWnet_model")
	if err != nil {
		return nil, err
	}
	melt, err := ds.Extract(ctx, "totm_nrg")
	if err != nil {
		return nil, err
	}

	w, err := physics.WarmAtmosphere(lwIn, lwNet, melt, deltaT)
	if err != nil {
		return nil, err
	}
	observed, warmed := w.CumulativeMelt(melt, ds.TimeStep(), s.cfg.ResetMeltAtNaN)

	res := &WarmingResult{
		Station:  ds.Station().String(),
		DeltaT:   deltaT,
		Times:    ds.Times(),
		Observed: observed,
		Warmed:   warmed,
	}
	obsTotal, warmTotal := res.Totals()
	s.logger.Info(ctx, "[ANALYSIS_WARMING] Warming experiment completed", logging.Fields{
		"station":         res.Station,
		"delta_t":         deltaT,
		"observed_melt_m": obsTotal,
		"warmed_melt_m":   warmTotal,
	})
	return res, nil
}

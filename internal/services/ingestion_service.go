package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"seb-platform/internal/config"
	"seb-platform/internal/dataset"
	"seb-platform/internal/models"
	"seb-platform/internal/repository"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

// IngestionService loads station files and persists their catalog and
// aggregates
type IngestionService struct {
	analysis *AnalysisService
	stats    *StatisticsService
	repo     repository.SEBRepository
	cfg      config.DataConfig
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	TotalStations      int
	SuccessfulStations int
	Variables          int
	Aggregates         int
	Duration           time.Duration
	Errors             []string
}

// StationIngestionResult contains per-station ingestion statistics
type StationIngestionResult struct {
	StationID  string
	Samples    int
	RowErrors  int
	Variables  int
	Skipped    int
	Aggregates int
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	analysis *AnalysisService,
	stats *StatisticsService,
	repo repository.SEBRepository,
	cfg config.DataConfig,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *IngestionService {
	return &IngestionService{
		analysis: analysis,
		stats:    stats,
		repo:     repo,
		cfg:      cfg,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// IngestStations ingests the given station codes, at most concurrency at a
// time. A failing station is reported in the result and does not stop the
// others.
func (s *IngestionService) IngestStations(ctx context.Context, codes []string, concurrency int) (*IngestionResult, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("no stations to ingest")
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startTime := time.Now()
	s.logger.Info(ctx, "[INGEST_START] Starting SEB ingestion", logging.Fields{
		"stations":    strings.Join(codes, ","),
		"data_dir":    s.cfg.Dir,
		"concurrency": concurrency,
		"stage":       "INITIALIZATION",
	})

	result := &IngestionResult{TotalStations: len(codes)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, code := range codes {
		code := code
		g.Go(func() error {
			stationCtx := logging.WithStation(gctx, code)
			res, err := s.ingestStation(stationCtx, code)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", code, err))
				s.logger.Error(stationCtx, "[INGEST_STATION_ERROR] Station ingestion failed", logging.Fields{
					"station_id": code,
					"stage":      "STATION_PROCESSING",
				}, err)
				return nil
			}
			result.SuccessfulStations++
			result.Variables += res.Variables
			result.Aggregates += res.Aggregates

			s.logger.Info(stationCtx, "[INGEST_STATION_SUCCESS] Station ingested", logging.Fields{
				"station_id": res.StationID,
				"samples":    res.Samples,
				"row_errors": res.RowErrors,
				"variables":  res.Variables,
				"skipped":    res.Skipped,
				"aggregates": res.Aggregates,
				"stage":      "STATION_COMPLETE",
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)
	s.logger.Info(ctx, "[INGEST_COMPLETE] SEB ingestion completed", logging.Fields{
		"total_stations":      result.TotalStations,
		"successful_stations": result.SuccessfulStations,
		"variables":           result.Variables,
		"aggregates":          result.Aggregates,
		"duration_seconds":    result.Duration.Seconds(),
		"error_count":         len(result.Errors),
		"stage":               "COMPLETE",
	})
	return result, nil
}

// ingestStation loads one station and stores its catalog and aggregates
func (s *IngestionService) ingestStation(ctx context.Context, code string) (*StationIngestionResult, error) {
	ds, err := s.analysis.OpenStation(ctx, code)
	if err != nil {
		return nil, err
	}

	times := ds.Times()
	now := time.Now().UTC()
	station := &models.StationRecord{
		StationID:       code,
		FileName:        ds.FileName(),
		TimeStepSeconds: int(ds.TimeStep().Seconds()),
		SampleCount:     ds.Len(),
		FirstSample:     times[0],
		LastSample:      times[len(times)-1],
		Version:         ds.Version(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.UpsertStation(ctx, station); err != nil {
		return nil, err
	}

	variables := ds.Variables()
	if err := s.repo.ReplaceVariables(ctx, code, variables); err != nil {
		return nil, err
	}

	res := &StationIngestionResult{
		StationID: code,
		Samples:   ds.Len(),
		RowErrors: ds.RowFormatErrors(),
	}
	for _, name := range s.selectVariables(variables) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		series, err := ds.Extract(ctx, name)
		if err != nil {
			res.Skipped++
			continue
		}
		records, err := s.stats.ComputeAggregates(ctx, code, name, series, times)
		if err != nil {
			return nil, err
		}
		stored, err := s.stats.StoreAggregates(ctx, records, s.cfg.BatchSize)
		res.Aggregates += stored
		if err != nil {
			return nil, err
		}
		res.Variables++
	}
	return res, nil
}

// selectVariables picks the distinct, non-erased names to aggregate,
// restricted to cfg.Variables when set.
func (s *IngestionService) selectVariables(variables []models.Variable) []string {
	wanted := make(map[string]bool, len(s.cfg.Variables))
	for _, v := range s.cfg.Variables {
		wanted[strings.TrimSpace(v)] = true
	}

	seen := make(map[string]bool, len(variables))
	var names []string
	for _, v := range variables {
		name := strings.TrimSpace(v.Name)
		if v.Erased || seen[name] {
			continue
		}
		if len(wanted) > 0 && !wanted[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// StationFiles maps every known station code to its canonical file name
func StationFiles() map[string]string {
	out := make(map[string]string)
	for _, st := range []dataset.Station{dataset.StationS5, dataset.StationS6, dataset.StationS9, dataset.StationS10} {
		out[st.String()] = st.FileName()
	}
	return out
}

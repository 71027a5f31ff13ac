package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seb-platform/internal/aggregate"
	"seb-platform/internal/models"
	"seb-platform/internal/repository"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

// StatisticsService computes and stores period aggregates of SEB variables
type StatisticsService struct {
	repo    repository.SEBRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(repo repository.SEBRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ComputeAggregates reduces one variable to daily, monthly and climatology
// records. A period with no complete interval is skipped with a warning.
func (s *StatisticsService) ComputeAggregates(ctx context.Context, stationID, variable string, series []float64, axis []time.Time) ([]*models.AggregateRecord, error) {
	now := time.Now().UTC()
	var records []*models.AggregateRecord

	emit := func(period models.Period, agg aggregate.Aggregate) {
		for i, v := range agg.Values {
			records = append(records, &models.AggregateRecord{
				StationID:   stationID,
				Variable:    variable,
				Period:      period,
				PeriodStart: agg.Starts[i],
				Value:       models.NullableFloat(v),
				CreatedAt:   now,
			})
		}
	}

	reducers := []struct {
		period models.Period
		reduce func() (aggregate.Aggregate, error)
	}{
		{models.PeriodDaily, func() (aggregate.Aggregate, error) { return aggregate.DailyAverage(series, axis) }},
		{models.PeriodMonthly, func() (aggregate.Aggregate, error) { return aggregate.MonthlyAverage(series, axis) }},
		{models.PeriodClimatology, func() (aggregate.Aggregate, error) {
			c, err := aggregate.ClimatologicalMonthlyAverage(series, axis)
			return c.Aggregate(), err
		}},
	}

	for _, r := range reducers {
		timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues(string(r.period)))
		agg, err := r.reduce()
		timer.ObserveDuration()

		if errors.Is(err, models.ErrInsufficientData) {
			s.logger.WarnErr(ctx, "[STATS_SKIPPED] Not enough data for period", logging.Fields{
				"station_id": stationID,
				"variable":   variable,
				"period":     string(r.period),
			}, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to compute %s aggregates of %s: %w", r.period, variable, err)
		}
		emit(r.period, agg)
	}
	return records, nil
}

// StoreAggregates upserts records in batches of batchSize and returns the
// number stored.
func (s *StatisticsService) StoreAggregates(ctx context.Context, records []*models.AggregateRecord, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = len(records)
	}
	stored := 0
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.repo.UpsertAggregates(ctx, records[start:end]); err != nil {
			return stored, fmt.Errorf("failed to store aggregate batch: %w", err)
		}
		stored += end - start
	}
	return stored, nil
}

// GetAggregates retrieves aggregates with filtering
func (s *StatisticsService) GetAggregates(ctx context.Context, filter repository.AggregateFilter) ([]*models.AggregateRecord, int, error) {
	return s.repo.GetAggregates(ctx, filter)
}

package services

import (
	"context"
	"sort"

	"seb-platform/internal/models"
	"seb-platform/internal/repository"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

// StationService serves the stored station catalog
type StationService struct {
	repo    repository.SEBRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStationService creates a new station service
func NewStationService(repo repository.SEBRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StationService {
	return &StationService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// GetStations retrieves stored stations
func (s *StationService) GetStations(ctx context.Context, limit, offset int) ([]*models.StationRecord, error) {
	return s.repo.ListStations(ctx, limit, offset)
}

// GetVariables retrieves the catalog of a stored station. Unknown stations
// yield a *repository.NotFoundError.
func (s *StationService) GetVariables(ctx context.Context, stationID string) ([]models.Variable, error) {
	if _, err := s.repo.GetStation(ctx, stationID); err != nil {
		return nil, err
	}
	return s.repo.ListVariables(ctx, stationID)
}

// HealthCheck reports whether the store is reachable
func (s *StationService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

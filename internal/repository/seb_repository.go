package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"seb-platform/internal/models"
	"seb-platform/pkg/database"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

// SEBRepository provides data access for loaded stations and their aggregates
type SEBRepository interface {
	// Station operations
	UpsertStation(ctx context.Context, station *models.StationRecord) error
	GetStation(ctx context.Context, stationID string) (*models.StationRecord, error)
	ListStations(ctx context.Context, limit, offset int) ([]*models.StationRecord, error)

	// Variable catalog operations
	ReplaceVariables(ctx context.Context, stationID string, variables []models.Variable) error
	ListVariables(ctx context.Context, stationID string) ([]models.Variable, error)

	// Aggregate operations
	UpsertAggregates(ctx context.Context, aggregates []*models.AggregateRecord) error
	GetAggregates(ctx context.Context, filter AggregateFilter) ([]*models.AggregateRecord, int, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// AggregateFilter defines filters for querying aggregates
type AggregateFilter struct {
	StationID *string
	Variable  *string
	Period    *models.Period
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// sebRepository implements SEBRepository
type sebRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewSEBRepository creates a new SEB repository
func NewSEBRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) SEBRepository {
	return &sebRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

const stationColumns = `station_id, file_name, time_step_seconds, sample_count,
		       first_sample, last_sample, version, created_at, updated_at`

// UpsertStation creates or refreshes a station row
func (r *sebRepository) UpsertStation(ctx context.Context, station *models.StationRecord) error {
	query := `
		INSERT INTO seb_stations (
			station_id, file_name, time_step_seconds, sample_count,
			first_sample, last_sample, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (station_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			time_step_seconds = EXCLUDED.time_step_seconds,
			sample_count = EXCLUDED.sample_count,
			first_sample = EXCLUDED.first_sample,
			last_sample = EXCLUDED.last_sample,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, "upsert_station", query,
		station.StationID,
		station.FileName,
		station.TimeStepSeconds,
		station.SampleCount,
		station.FirstSample,
		station.LastSample,
		station.Version,
		station.CreatedAt,
		station.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert station: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_UPSERT_STATION] Station stored", logging.Fields{
		"station_id": station.StationID,
		"file_name":  station.FileName,
		"samples":    station.SampleCount,
	})
	return nil
}

// GetStation retrieves a station by ID
func (r *sebRepository) GetStation(ctx context.Context, stationID string) (*models.StationRecord, error) {
	query := `SELECT ` + stationColumns + ` FROM seb_stations WHERE station_id = $1`

	var station models.StationRecord
	err := r.db.GetContext(ctx, "get_station", &station, query, stationID)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Resource: "seb_station", ID: stationID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return &station, nil
}

// ListStations retrieves stations with pagination
func (r *sebRepository) ListStations(ctx context.Context, limit, offset int) ([]*models.StationRecord, error) {
	query := `SELECT ` + stationColumns + ` FROM seb_stations ORDER BY station_id LIMIT $1 OFFSET $2`

	var stations []*models.StationRecord
	if err := r.db.SelectContext(ctx, "list_stations", &stations, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	return stations, nil
}

// ReplaceVariables swaps a station's catalog in one transaction
func (r *sebRepository) ReplaceVariables(ctx context.Context, stationID string, variables []models.Variable) error {
	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seb_variables WHERE station_id = $1`, stationID); err != nil {
		r.db.RecordTxError("delete_variables")
		return fmt.Errorf("failed to clear variables: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO seb_variables (station_id, var_index, name, erased)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, v := range variables {
		if _, err := stmt.ExecContext(ctx, stationID, v.Index, v.Name, v.Erased); err != nil {
			r.db.RecordTxError("insert_variable")
			return fmt.Errorf("failed to insert variable %q: %w", v.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_REPLACE_VARIABLES] Variable catalog stored", logging.Fields{
		"station_id": stationID,
		"count":      len(variables),
	})
	return nil
}

// ListVariables returns a station's catalog in column order
func (r *sebRepository) ListVariables(ctx context.Context, stationID string) ([]models.Variable, error) {
	query := `
		SELECT var_index, name, erased
		FROM seb_variables
		WHERE station_id = $1
		ORDER BY var_index
	`

	var variables []models.Variable
	if err := r.db.SelectContext(ctx, "list_variables", &variables, query, stationID); err != nil {
		return nil, fmt.Errorf("failed to list variables: %w", err)
	}
	return variables, nil
}

const upsertAggregateQuery = `
	INSERT INTO seb_aggregates (station_id, variable, period, period_start, value, created_at)
	VALUES (:station_id, :variable, :period, :period_start, :value, :created_at)
	ON CONFLICT (station_id, variable, period, period_start) DO UPDATE SET
		value = EXCLUDED.value,
		created_at = EXCLUDED.created_at
`

// UpsertAggregates stores a batch of aggregates in a single transaction
func (r *sebRepository) UpsertAggregates(ctx context.Context, aggregates []*models.AggregateRecord) error {
	if len(aggregates) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		r.metrics.StoreBatchSize.Observe(float64(len(aggregates)))
		r.logger.Debug(ctx, "[REPO_BATCH_UPSERT] Aggregate batch stored", logging.Fields{
			"count":       len(aggregates),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, upsertAggregateQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, agg := range aggregates {
		if _, err := stmt.ExecContext(ctx, agg); err != nil {
			r.db.RecordTxError("upsert_aggregate")
			return fmt.Errorf("failed to upsert aggregate %s/%s/%s: %w", agg.StationID, agg.Variable, agg.Period, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.AggregatesStored.Add(float64(len(aggregates)))
	return nil
}

// buildAggregateQuery renders the filtered select and its arguments, without
// ordering or pagination.
func buildAggregateQuery(filter AggregateFilter) (string, []interface{}) {
	query := `
		SELECT id, station_id, variable, period, period_start, value, created_at
		FROM seb_aggregates
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.StationID != nil {
		query += fmt.Sprintf(" AND station_id = $%d", argNum)
		args = append(args, *filter.StationID)
		argNum++
	}
	if filter.Variable != nil {
		query += fmt.Sprintf(" AND variable = $%d", argNum)
		args = append(args, *filter.Variable)
		argNum++
	}
	if filter.Period != nil {
		query += fmt.Sprintf(" AND period = $%d", argNum)
		args = append(args, string(*filter.Period))
		argNum++
	}
	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND period_start >= $%d", argNum)
		args = append(args, *filter.StartDate)
		argNum++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND period_start <= $%d", argNum)
		args = append(args, *filter.EndDate)
	}
	return query, args
}

// GetAggregates retrieves aggregates with filtering and pagination
func (r *sebRepository) GetAggregates(ctx context.Context, filter AggregateFilter) ([]*models.AggregateRecord, int, error) {
	query, args := buildAggregateQuery(filter)

	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	if err := r.db.GetContext(ctx, "count_aggregates", &totalCount, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count aggregates: %w", err)
	}

	n := len(args)
	query += " ORDER BY station_id, variable, period, period_start"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
	args = append(args, filter.Limit, filter.Offset)

	var aggregates []*models.AggregateRecord
	if err := r.db.SelectContext(ctx, "get_aggregates", &aggregates, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get aggregates: %w", err)
	}
	return aggregates, totalCount, nil
}

// HealthCheck performs a repository health check
func (r *sebRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

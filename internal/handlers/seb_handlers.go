package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"seb-platform/internal/models"
	"seb-platform/internal/repository"
	"seb-platform/internal/services"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// SEBHandler handles the SEB API endpoints
type SEBHandler struct {
	stationService *services.StationService
	statsService   *services.StatisticsService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewSEBHandler creates a new SEB handler
func NewSEBHandler(
	stationService *services.StationService,
	statsService *services.StatisticsService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *SEBHandler {
	return &SEBHandler{
		stationService: stationService,
		statsService:   statsService,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// AggregateView is the API shape of a stored aggregate. Climatology rows
// carry their slot 0..13 instead of a meaningful date.
type AggregateView struct {
	StationID   string        `json:"station_id"`
	Variable    string        `json:"variable"`
	Period      models.Period `json:"period"`
	PeriodStart *time.Time    `json:"period_start,omitempty"`
	Slot        *int          `json:"slot,omitempty"`
	Value       *float64      `json:"value"`
}

func newAggregateView(a *models.AggregateRecord) AggregateView {
	v := AggregateView{
		StationID: a.StationID,
		Variable:  a.Variable,
		Period:    a.Period,
		Value:     a.Value,
	}
	if a.Period == models.PeriodClimatology {
		slot := models.ClimatologySlot(a.PeriodStart)
		v.Slot = &slot
	} else {
		start := a.PeriodStart
		v.PeriodStart = &start
	}
	return v
}

// pagination reads page and limit, falling back to defaults on bad input
func pagination(r *http.Request) (page, limit int) {
	page, limit = 1, defaultLimit
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= maxLimit {
		limit = l
	}
	return page, limit
}

// ListStations handles GET /api/stations
func (h *SEBHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, limit := pagination(r)

	stations, err := h.stationService.GetStations(ctx, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_STATIONS_ERROR] Failed to list stations", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/stations")
		h.sendError(w, r, "failed to retrieve stations", http.StatusInternalServerError)
		return
	}
	if stations == nil {
		stations = []*models.StationRecord{}
	}

	h.sendJSON(w, r, map[string]interface{}{
		"data":  stations,
		"page":  page,
		"limit": limit,
	}, http.StatusOK)
}

// ListVariables handles GET /api/stations/{id}/variables
func (h *SEBHandler) ListVariables(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := mux.Vars(r)["id"]
	ctx = logging.WithStation(ctx, stationID)

	variables, err := h.stationService.GetVariables(ctx, stationID)
	var notFound *repository.NotFoundError
	switch {
	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("not_found", "/api/stations/{id}/variables")
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error(ctx, "[API_LIST_VARIABLES_ERROR] Failed to list variables", logging.Fields{
			"station_id": stationID,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/stations/{id}/variables")
		h.sendError(w, r, "failed to retrieve variables", http.StatusInternalServerError)
		return
	}
	if variables == nil {
		variables = []models.Variable{}
	}

	h.sendJSON(w, r, map[string]interface{}{
		"station_id": stationID,
		"data":       variables,
	}, http.StatusOK)
}

// GetAggregates handles GET /api/aggregates
func (h *SEBHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	page, limit := pagination(r)

	filter := repository.AggregateFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if v := q.Get("station_id"); v != "" {
		filter.StationID = &v
	}
	if v := q.Get("variable"); v != "" {
		filter.Variable = &v
	}
	if v := q.Get("period"); v != "" {
		period := models.Period(v)
		if !period.Valid() {
			h.sendError(w, r, "invalid period, expected daily, monthly or climatology", http.StatusBadRequest)
			return
		}
		filter.Period = &period
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_date", &filter.StartDate},
		{"end_date", &filter.EndDate},
	} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			h.sendError(w, r, "invalid "+p.name+" format, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		*p.dst = &d
	}

	aggregates, total, err := h.statsService.GetAggregates(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_AGGREGATES_ERROR] Failed to get aggregates", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/aggregates")
		h.sendError(w, r, "failed to retrieve aggregates", http.StatusInternalServerError)
		return
	}

	views := make([]AggregateView, len(aggregates))
	for i, a := range aggregates {
		views[i] = newAggregateView(a)
	}

	h.sendJSON(w, r, PaginatedResponse{
		Data:       views,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *SEBHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if err := h.stationService.HealthCheck(ctx); err != nil {
		h.logger.WarnErr(ctx, "[HEALTH_CHECK] Store unreachable", logging.Fields{}, err)
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{"status": status["status"]})
	h.sendJSON(w, r, status, code)
}

// sendJSON sends a JSON response and counts it
func (h *SEBHandler) sendJSON(w http.ResponseWriter, r *http.Request, data interface{}, statusCode int) {
	h.metrics.RecordAPIRequest(routeTemplate(r), r.Method, strconv.Itoa(statusCode))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WarnErr(r.Context(), "[API_ENCODE_ERROR] Failed to write response", logging.Fields{}, err)
	}
}

// sendError sends an error response
func (h *SEBHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.sendJSON(w, r, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}

// routeTemplate is the matched mux path template, or the raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// Instrument tags each request with an X-Request-ID, carries it in the
// context and observes the request duration per route.
func (h *SEBHandler) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(logging.WithRequestID(r.Context(), id))

		next.ServeHTTP(w, r)

		duration := time.Since(start)
		h.metrics.APIRequestDuration.WithLabelValues(routeTemplate(r)).Observe(duration.Seconds())
		h.logger.Debug(r.Context(), "[API_REQUEST] Request served", logging.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"duration_ms": duration.Milliseconds(),
		})
	})
}

// RegisterRoutes registers all SEB API routes
func (h *SEBHandler) RegisterRoutes(router *mux.Router) {
	router.Use(h.Instrument)
	router.HandleFunc("/api/stations", h.ListStations).Methods("GET")
	router.HandleFunc("/api/stations/{id}/variables", h.ListVariables).Methods("GET")
	router.HandleFunc("/api/aggregates", h.GetAggregates).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", h.SwaggerUI).Methods("GET")
}

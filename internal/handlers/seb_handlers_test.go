package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seb-platform/internal/models"
	"seb-platform/internal/repository"
	"seb-platform/internal/services"
	"seb-platform/pkg/logging"
	"seb-platform/pkg/metrics"
)

type stubRepo struct {
	stations   []*models.StationRecord
	variables  map[string][]models.Variable
	aggregates []*models.AggregateRecord
	lastFilter repository.AggregateFilter
	healthErr  error
}

func (s *stubRepo) UpsertStation(context.Context, *models.StationRecord) error { return nil }

func (s *stubRepo) GetStation(_ context.Context, id string) (*models.StationRecord, error) {
	for _, st := range s.stations {
		if st.StationID == id {
			return st, nil
		}
	}
	return nil, &repository.NotFoundError{Resource: "seb_station", ID: id}
}

func (s *stubRepo) ListStations(_ context.Context, limit, offset int) ([]*models.StationRecord, error) {
	if offset >= len(s.stations) {
		return nil, nil
	}
	out := s.stations[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubRepo) ReplaceVariables(context.Context, string, []models.Variable) error { return nil }

func (s *stubRepo) ListVariables(_ context.Context, id string) ([]models.Variable, error) {
	return s.variables[id], nil
}

func (s *stubRepo) UpsertAggregates(context.Context, []*models.AggregateRecord) error { return nil }

func (s *stubRepo) GetAggregates(_ context.Context, filter repository.AggregateFilter) ([]*models.AggregateRecord, int, error) {
	s.lastFilter = filter
	return s.aggregates, len(s.aggregates), nil
}

func (s *stubRepo) HealthCheck(context.Context) error { return s.healthErr }

func newTestRouter(repo *stubRepo) *mux.Router {
	logger := logging.NewNopLogger()
	m := metrics.NewCollector("seb_test", prometheus.NewRegistry())
	h := NewSEBHandler(
		services.NewStationService(repo, logger, m),
		services.NewStatisticsService(repo, logger, m),
		logger,
		m,
	)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func serve(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListStations(t *testing.T) {
	repo := &stubRepo{stations: []*models.StationRecord{
		{StationID: "S5"}, {StationID: "S6"}, {StationID: "S9"},
	}}
	rec := serve(t, newTestRouter(repo), "/api/stations?page=2&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []models.StationRecord `json:"data"`
		Page  int                    `json:"page"`
		Limit int                    `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Page)
	assert.Equal(t, 2, body.Limit)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "S9", body.Data[0].StationID)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListStations_RequestIDEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/stations", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	newTestRouter(&stubRepo{}).ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"data":[],"page":1,"limit":100}`, rec.Body.String())
}

func TestListVariables(t *testing.T) {
	repo := &stubRepo{
		stations: []*models.StationRecord{{StationID: "S6"}},
		variables: map[string][]models.Variable{
			"S6": {{Index: 0, Name: "Hsen"}, {Index: 51, Name: "SumDivQ", Erased: true}},
		},
	}
	router := newTestRouter(repo)

	rec := serve(t, router, "/api/stations/S6/variables")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		StationID string            `json:"station_id"`
		Data      []models.Variable `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "S6", body.StationID)
	assert.Equal(t, repo.variables["S6"], body.Data)

	rec = serve(t, router, "/api/stations/S7/variables")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errBody ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, http.StatusNotFound, errBody.Code)
	assert.Contains(t, errBody.Message, "S7")
}

func TestGetAggregates(t *testing.T) {
	v := 12.5
	day := time.Date(2004, time.July, 1, 0, 0, 0, 0, time.UTC)
	repo := &stubRepo{aggregates: []*models.AggregateRecord{
		{StationID: "S5", Variable: "Hsen", Period: models.PeriodDaily, PeriodStart: day, Value: &v},
		{StationID: "S5", Variable: "Hsen", Period: models.PeriodClimatology, PeriodStart: models.ClimatologySlotDate(13)},
	}}

	rec := serve(t, newTestRouter(repo), "/api/aggregates?station_id=S5&variable=Hsen&start_date=2004-01-01&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, repo.lastFilter.StationID)
	assert.Equal(t, "S5", *repo.lastFilter.StationID)
	require.NotNil(t, repo.lastFilter.StartDate)
	assert.Equal(t, time.Date(2004, time.January, 1, 0, 0, 0, 0, time.UTC), *repo.lastFilter.StartDate)
	assert.Nil(t, repo.lastFilter.EndDate)
	assert.Equal(t, 1, repo.lastFilter.Limit)

	var body struct {
		Data       []AggregateView `json:"data"`
		Total      int             `json:"total"`
		TotalPages int             `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 2, body.TotalPages)
	require.Len(t, body.Data, 2)

	require.NotNil(t, body.Data[0].PeriodStart)
	assert.True(t, day.Equal(*body.Data[0].PeriodStart))
	assert.Nil(t, body.Data[0].Slot)
	require.NotNil(t, body.Data[0].Value)
	assert.Equal(t, 12.5, *body.Data[0].Value)

	require.NotNil(t, body.Data[1].Slot)
	assert.Equal(t, 13, *body.Data[1].Slot)
	assert.Nil(t, body.Data[1].PeriodStart)
	assert.Nil(t, body.Data[1].Value)
}

func TestGetAggregates_BadRequest(t *testing.T) {
	router := newTestRouter(&stubRepo{})
	for _, target := range []string{
		"/api/aggregates?period=weekly",
		"/api/aggregates?start_date=01-01-2004",
		"/api/aggregates?end_date=tomorrow",
	} {
		t.Run(target, func(t *testing.T) {
			rec := serve(t, router, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	repo := &stubRepo{}
	router := newTestRouter(repo)

	rec := serve(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	repo.healthErr = errors.New("connection refused")
	rec = serve(t, router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unhealthy"`)
}

func TestDocs(t *testing.T) {
	router := newTestRouter(&stubRepo{})

	rec := serve(t, router, "/api/docs/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, paths, "/api/aggregates")
	assert.Contains(t, paths, "/api/stations/{id}/variables")

	rec = serve(t, router, "/api/docs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `url: "/api/docs/openapi.json"`)
	assert.Contains(t, rec.Body.String(), "<title>Glacier SEB API</title>")
}

func TestRenderHTML_ExecutionError(t *testing.T) {
	tmpl := template.Must(template.New("broken").Parse(`<p>partial</p>{{.Missing}}`))

	rec := httptest.NewRecorder()
	err := renderHTML(rec, tmpl, struct{ Title string }{})

	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "partial")
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query     string
		wantPage  int
		wantLimit int
	}{
		{"", 1, 100},
		{"page=3&limit=50", 3, 50},
		{"page=0&limit=5000", 1, 100},
		{"page=x&limit=-1", 1, 100},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/stations?"+tt.query, nil)
		page, limit := pagination(r)
		assert.Equal(t, tt.wantPage, page, tt.query)
		assert.Equal(t, tt.wantLimit, limit, tt.query)
	}
}

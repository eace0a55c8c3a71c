package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"lorawan-pipeline/internal/analytics"
	"lorawan-pipeline/internal/model"
)

type stubResults struct {
	results map[string]model.AnalyticsResult
	count   int64
	err     error
}

func (s *stubResults) GetResult(_ context.Context, metricName string) (model.AnalyticsResult, error) {
	if s.err != nil {
		return model.AnalyticsResult{}, s.err
	}
	result, ok := s.results[metricName]
	if !ok {
		return model.AnalyticsResult{}, fmt.Errorf("%w: %s", model.ErrResultNotFound, metricName)
	}
	return result, nil
}

func (s *stubResults) CountRecords(context.Context) (int64, error) {
	return s.count, s.err
}

type stubRuns struct {
	runs []model.RunSummary
	err  error
}

func (s *stubRuns) ListRuns(limit int) ([]model.RunSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.runs) > limit {
		return s.runs[:limit], nil
	}
	return s.runs, nil
}

func TestGetTopDevices(t *testing.T) {
	computedAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	results := &stubResults{results: map[string]model.AnalyticsResult{
		analytics.MetricTopDevices: {
			MetricName:  analytics.MetricTopDevices,
			ComputedAt:  computedAt,
			Payload:     []map[string]interface{}{{"device_id": "DEV-A", "count": 7}},
			ResultCount: 1,
		},
	}}
	h := New(results, &stubRuns{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetTopDevices(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/top-devices", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Success    bool            `json:"success"`
		Count      int             `json:"count"`
		ComputedAt time.Time       `json:"computed_at"`
		Data       json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, 1, body.Count)
	require.True(t, computedAt.Equal(body.ComputedAt))
	require.Contains(t, string(body.Data), "DEV-A")
}

func TestGetMetricNotComputedYet(t *testing.T) {
	h := New(&stubResults{}, &stubRuns{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetWeakDevices(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/weak-devices", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), analytics.MetricWeakSignal)
}

func TestGetMetricStoreFailure(t *testing.T) {
	h := New(&stubResults{err: errors.New("socket closed")}, &stubRuns{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetDuplicates(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/duplicates", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	// Store internals never leak to clients.
	require.NotContains(t, rec.Body.String(), "socket closed")
}

func TestGetSummary(t *testing.T) {
	results := &stubResults{
		count: 1234,
		results: map[string]model.AnalyticsResult{
			analytics.MetricTopDevices: {MetricName: analytics.MetricTopDevices, ResultCount: 5},
		},
	}
	h := New(results, &stubRuns{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetSummary(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/summary", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success      bool                              `json:"success"`
		TotalRecords int64                             `json:"total_records"`
		Metrics      map[string]map[string]interface{} `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, int64(1234), body.TotalRecords)
	require.Len(t, body.Metrics, 5)
	require.Equal(t, true, body.Metrics[analytics.MetricTopDevices]["available"])
	require.Equal(t, false, body.Metrics[analytics.MetricDuplicates]["available"])
}

func TestListRuns(t *testing.T) {
	runs := &stubRuns{runs: []model.RunSummary{
		{RunID: "run-2", SourceID: "sensors", Status: model.RunCompleted},
		{RunID: "run-1", SourceID: "sensors", Status: model.RunFailed},
	}}
	h := New(&stubResults{}, runs, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool               `json:"success"`
		Count   int                `json:"count"`
		Runs    []model.RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Success)
	require.Equal(t, 2, body.Count)
	require.Equal(t, "run-2", body.Runs[0].RunID)
}

func TestListRunsHonorsLimit(t *testing.T) {
	runs := &stubRuns{runs: []model.RunSummary{{RunID: "run-2"}, {RunID: "run-1"}}}
	h := New(&stubResults{}, runs, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=1", nil))

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
}

func TestListRunsRejectsBadLimit(t *testing.T) {
	h := New(&stubResults{}, &stubRuns{}, zerolog.Nop())

	for _, limit := range []string{"0", "-5", "many"} {
		rec := httptest.NewRecorder()
		h.ListRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit="+limit, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestHealth(t *testing.T) {
	h := New(&stubResults{}, &stubRuns{}, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"lorawan-pipeline/internal/analytics"
	"lorawan-pipeline/internal/model"
)

// ResultStore is the read-only slice of the document store the API serves.
type ResultStore interface {
	GetResult(ctx context.Context, metricName string) (model.AnalyticsResult, error)
	CountRecords(ctx context.Context) (int64, error)
}

// RunLister exposes the run history kept in the state store.
type RunLister interface {
	ListRuns(limit int) ([]model.RunSummary, error)
}

// Handler serves precomputed analytics. It never writes: ingestion owns all
// mutation, the API is a pure consumer.
type Handler struct {
	results ResultStore
	runs    RunLister
	log     zerolog.Logger
}

// New builds the API handler.
func New(results ResultStore, runs RunLister, log zerolog.Logger) *Handler {
	return &Handler{
		results: results,
		runs:    runs,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// metricResponse is the envelope for one analytics snapshot.
type metricResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Count      int         `json:"count"`
	ComputedAt time.Time   `json:"computed_at"`
}

// GetTopDevices returns the top active devices ranking
// @Summary Top active devices
// @Description Devices ranked by uplink count, most active first
// @Tags analytics
// @Produce json
// @Success 200 {object} handler.metricResponse
// @Failure 404 {object} map[string]interface{} "No result computed yet"
// @Router /analytics/top-devices [get]
func (h *Handler) GetTopDevices(w http.ResponseWriter, r *http.Request) {
	h.serveMetric(w, r, analytics.MetricTopDevices)
}

// GetWeakDevices returns devices with weak radio links
// @Summary Weak signal devices
// @Description Devices whose RSSI or SNR fell below the configured thresholds
// @Tags analytics
// @Produce json
// @Success 200 {object} handler.metricResponse
// @Failure 404 {object} map[string]interface{} "No result computed yet"
// @Router /analytics/weak-devices [get]
func (h *Handler) GetWeakDevices(w http.ResponseWriter, r *http.Request) {
	h.serveMetric(w, r, analytics.MetricWeakSignal)
}

// GetGatewayStats returns per-gateway environment statistics
// @Summary Gateway environment statistics
// @Description Mean temperature and humidity per gateway
// @Tags analytics
// @Produce json
// @Success 200 {object} handler.metricResponse
// @Failure 404 {object} map[string]interface{} "No result computed yet"
// @Router /analytics/gateway-stats [get]
func (h *Handler) GetGatewayStats(w http.ResponseWriter, r *http.Request) {
	h.serveMetric(w, r, analytics.MetricGatewayStats)
}

// GetDuplicates returns natural-key duplicate groups
// @Summary Duplicate device records
// @Description Device/timestamp combinations seen more than once
// @Tags analytics
// @Produce json
// @Success 200 {object} handler.metricResponse
// @Failure 404 {object} map[string]interface{} "No result computed yet"
// @Router /analytics/duplicates [get]
func (h *Handler) GetDuplicates(w http.ResponseWriter, r *http.Request) {
	h.serveMetric(w, r, analytics.MetricDuplicates)
}

// GetHighTemperature returns records above the temperature threshold
// @Summary High temperature records
// @Description Records whose temperature exceeds the configured threshold
// @Tags analytics
// @Produce json
// @Success 200 {object} handler.metricResponse
// @Failure 404 {object} map[string]interface{} "No result computed yet"
// @Router /analytics/high-temperature [get]
func (h *Handler) GetHighTemperature(w http.ResponseWriter, r *http.Request) {
	h.serveMetric(w, r, analytics.MetricHighTemp)
}

func (h *Handler) serveMetric(w http.ResponseWriter, r *http.Request, metricName string) {
	result, err := h.results.GetResult(r.Context(), metricName)
	if errors.Is(err, model.ErrResultNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "no result computed yet for " + metricName,
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("metric", metricName).Msg("could not load result")
		http.Error(w, "failed to load analytics result", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, metricResponse{
		Success:    true,
		Data:       result.Payload,
		Count:      result.ResultCount,
		ComputedAt: result.ComputedAt,
	})
}

// GetSummary returns the overall analytics state
// @Summary Analytics summary
// @Description Committed record count plus freshness of each metric
// @Tags analytics
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /analytics/summary [get]
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	total, err := h.results.CountRecords(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("could not count records")
		http.Error(w, "failed to load summary", http.StatusInternalServerError)
		return
	}

	metrics := make(map[string]interface{})
	for _, name := range []string{
		analytics.MetricTopDevices,
		analytics.MetricWeakSignal,
		analytics.MetricGatewayStats,
		analytics.MetricDuplicates,
		analytics.MetricHighTemp,
	} {
		result, err := h.results.GetResult(r.Context(), name)
		if errors.Is(err, model.ErrResultNotFound) {
			metrics[name] = map[string]interface{}{"available": false}
			continue
		}
		if err != nil {
			h.log.Error().Err(err).Str("metric", name).Msg("could not load result")
			metrics[name] = map[string]interface{}{"available": false}
			continue
		}
		metrics[name] = map[string]interface{}{
			"available":    true,
			"result_count": result.ResultCount,
			"computed_at":  result.ComputedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"total_records": total,
		"metrics":       metrics,
	})
}

// ListRuns returns recent pipeline runs
// @Summary Run history
// @Description Most recent pipeline run summaries, newest first
// @Tags runs
// @Produce json
// @Param limit query int false "Maximum runs to return" default(50)
// @Success 200 {object} map[string]interface{}
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("could not list runs")
		http.Error(w, "failed to load runs", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"runs":    runs,
		"count":   len(runs),
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

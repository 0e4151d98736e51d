// Package router configures the keeper's HTTP API.
//
// Routes configured:
//   - GET /stations/anomaly?station=<id> - Score the station's recent activity
//   - GET /stations/forecast?station=<id>&target=<column>&horizon=<dur> - One-shot forecast
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// Anomaly scoring loads the station's trained model on demand from the
// registry; a station without a model yields 404. Forecasts are trained on
// request from the freshest collected history and return a single integer.
package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veloguard/veloguard/cmd/keeper/metrics"
	"github.com/veloguard/veloguard/pkg/activity"
	"github.com/veloguard/veloguard/pkg/anomaly"
	"github.com/veloguard/veloguard/pkg/forecast"
	"github.com/veloguard/veloguard/pkg/httpx"
)

// HistorySource exposes the feature-derived records from the last
// collection run.
type HistorySource interface {
	Records() []activity.Record
}

// SetupRoutes configures HTTP endpoints for the keeper.
func SetupRoutes(source HistorySource, registry *anomaly.Registry, seed int64, logger *slog.Logger, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/healthz", httpx.HealthHandler())
	mux.HandleFunc("/stations/anomaly", handleAnomaly(source, registry, logger, m))
	mux.HandleFunc("/stations/forecast", handleForecast(source, seed, logger, m))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// scoredPoint is one scored observation in an anomaly response.
type scoredPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Label     int       `json:"label"`
	Score     float64   `json:"score"`
}

// handleAnomaly returns a handler for GET /stations/anomaly?station=<id>.
func handleAnomaly(source HistorySource, registry *anomaly.Registry, logger *slog.Logger, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { m.RecordScore(time.Since(start).Seconds()) }()

		stationID, ok := stationParam(w, r)
		if !ok {
			return
		}

		station := activity.FilterStation(source.Records(), stationID)
		if len(station) == 0 {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no recent records for station %d", stationID))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		detector, err := registry.Get(ctx, stationID)
		if err != nil {
			if errors.Is(err, anomaly.ErrModelNotFound) {
				httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no trained model for station %d", stationID))
				return
			}
			logger.Error("failed to load model", "station", stationID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		labels, err := detector.Predict(station)
		if err != nil {
			logger.Error("failed to score station", "station", stationID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}
		scores, err := detector.Scores(station)
		if err != nil {
			logger.Error("failed to score station", "station", stationID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		points := make([]scoredPoint, len(station))
		for i := range station {
			points[i] = scoredPoint{
				Timestamp: station[i].Timestamp,
				Label:     labels[i],
				Score:     scores[i],
			}
		}

		resp := map[string]any{
			"station":       stationID,
			"tier":          detector.Tier,
			"contamination": detector.Contamination,
			"points":        points,
		}

		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// handleForecast returns a handler for
// GET /stations/forecast?station=<id>&target=<column>&horizon=<dur>.
func handleForecast(source HistorySource, seed int64, logger *slog.Logger, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { m.RecordScore(time.Since(start).Seconds()) }()

		stationID, ok := stationParam(w, r)
		if !ok {
			return
		}

		target, err := forecast.ParseTargetColumn(r.URL.Query().Get("target"))
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		horizon := r.URL.Query().Get("horizon")
		if _, err := forecast.ParseHorizon(horizon); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, err)
			return
		}

		records := source.Records()
		if len(activity.FilterStation(records, stationID)) == 0 {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("no recent records for station %d", stationID))
			return
		}

		model, err := forecast.Train(records, stationID, target, horizon, seed)
		if err != nil {
			logger.Error("failed to train forecast", "station", stationID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		value, err := model.Forecast(records)
		if err != nil {
			logger.Error("failed to forecast", "station", stationID, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		resp := map[string]any{
			"station":  stationID,
			"target":   target,
			"horizon":  horizon,
			"forecast": value,
		}

		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

// stationParam parses and validates the station query parameter, writing
// the error response itself when invalid.
func stationParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("station")
	if raw == "" {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "station parameter required")
		return 0, false
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid station id")
		return 0, false
	}
	return id, true
}

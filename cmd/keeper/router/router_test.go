package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/veloguard/veloguard/cmd/keeper/metrics"
	"github.com/veloguard/veloguard/pkg/activity"
	"github.com/veloguard/veloguard/pkg/anomaly"
	"github.com/veloguard/veloguard/pkg/profile"
	"github.com/veloguard/veloguard/pkg/storage"
)

// testMetrics is shared across tests; promauto metrics register globally
// and can only be created once per process.
var testMetrics = metrics.New("test")

type staticHistory struct {
	records []activity.Record
}

func (s *staticHistory) Records() []activity.Record { return s.records }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stationHistory builds a busy open-station history with run lengths that
// cycle 0..29 plus a tail of longer idle stretches.
func stationHistory(station int) []activity.Record {
	base := time.Date(2023, 4, 3, 0, 0, 0, 0, time.UTC)
	records := make([]activity.Record, 0, 1050)
	add := func(n, run int) {
		records = append(records, activity.Record{
			StationID:                    station,
			Timestamp:                    base.Add(time.Duration(n) * activity.TickResolution),
			AvailableStands:              activity.Int(10),
			AvailableBikes:               activity.Int(10),
			Status:                       activity.StatusOpen,
			ConsecutiveNoTransactionsOut: run,
		})
	}
	for i := 0; i < 1000; i++ {
		add(i, i%30)
	}
	for i := 0; i < 50; i++ {
		add(1000+i, 40+i%20)
	}
	return records
}

func newTestMux(t *testing.T, records []activity.Record, withModel bool) *http.ServeMux {
	t.Helper()

	registry := anomaly.NewRegistry(storage.NewMemoryStore())
	if withModel {
		d, err := anomaly.Train(records, records[0].StationID, profile.TierVeryHigh, anomaly.TrainConfig{Seed: 2020})
		if err != nil {
			t.Fatalf("Train: %v", err)
		}
		if err := registry.Put(context.Background(), d); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	return SetupRoutes(&staticHistory{records: records}, registry, 2020, discardLogger(), testMetrics)
}

func TestHealthEndpoint(t *testing.T) {
	mux := newTestMux(t, stationHistory(1), false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "OK" {
		t.Errorf("body = %q, want %q", w.Body.String(), "OK")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestMux(t, stationHistory(1), false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Header().Get("Content-Type") == "" {
		t.Error("Content-Type header should be set for metrics endpoint")
	}
}

func TestAnomaly_MissingStation(t *testing.T) {
	mux := newTestMux(t, stationHistory(1), false)

	req := httptest.NewRequest(http.MethodGet, "/stations/anomaly", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAnomaly_InvalidStation(t *testing.T) {
	mux := newTestMux(t, stationHistory(1), false)

	req := httptest.NewRequest(http.MethodGet, "/stations/anomaly?station=abc", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAnomaly_NoModel(t *testing.T) {
	mux := newTestMux(t, stationHistory(1), false)

	req := httptest.NewRequest(http.MethodGet, "/stations/anomaly?station=1", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestAnomaly_Success(t *testing.T) {
	records := stationHistory(1)
	mux := newTestMux(t, records, true)

	req := httptest.NewRequest(http.MethodGet, "/stations/anomaly?station=1", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Station int `json:"station"`
		Points  []struct {
			Label int     `json:"label"`
			Score float64 `json:"score"`
		} `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Station != 1 {
		t.Errorf("station = %d, want 1", resp.Station)
	}
	if len(resp.Points) != len(records) {
		t.Errorf("len(points) = %d, want %d", len(resp.Points), len(records))
	}
	for i, p := range resp.Points {
		if p.Label != 1 && p.Label != -1 {
			t.Errorf("point %d label = %d, want +1 or -1", i, p.Label)
		}
		if p.Score <= 0 || p.Score >= 100 {
			t.Errorf("point %d score = %v, want in (0, 100)", i, p.Score)
		}
	}
}

func forecastHistory(station int) []activity.Record {
	base := time.Date(2023, 4, 3, 0, 0, 0, 0, time.UTC)
	records := make([]activity.Record, 0, 432)
	for i := 0; i < 432; i++ {
		bikes := 5 + i%8
		records = append(records, activity.Record{
			StationID:       station,
			Timestamp:       base.Add(time.Duration(i) * activity.TickResolution),
			AvailableStands: activity.Int(20 - bikes),
			AvailableBikes:  activity.Int(bikes),
			Status:          activity.StatusOpen,
		})
	}
	return records
}

func TestForecast_Success(t *testing.T) {
	mux := newTestMux(t, forecastHistory(2), false)

	req := httptest.NewRequest(http.MethodGet, "/stations/forecast?station=2&target=available_bikes&horizon=30m", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Station  int    `json:"station"`
		Target   string `json:"target"`
		Horizon  string `json:"horizon"`
		Forecast int    `json:"forecast"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Station != 2 || resp.Target != "available_bikes" || resp.Horizon != "30m" {
		t.Errorf("echo fields = %+v", resp)
	}
	if resp.Forecast < 0 || resp.Forecast > 20 {
		t.Errorf("forecast = %d, want a plausible bike count", resp.Forecast)
	}
}

func TestForecast_BadParams(t *testing.T) {
	mux := newTestMux(t, forecastHistory(2), false)

	tests := []struct {
		name string
		url  string
		want int
	}{
		{"missing station", "/stations/forecast?target=available_bikes&horizon=30m", http.StatusBadRequest},
		{"bad target", "/stations/forecast?station=2&target=bikes&horizon=30m", http.StatusBadRequest},
		{"bad horizon", "/stations/forecast?station=2&target=available_bikes&horizon=soon", http.StatusBadRequest},
		{"unknown station", "/stations/forecast?station=9&target=available_bikes&horizon=30m", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status code = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

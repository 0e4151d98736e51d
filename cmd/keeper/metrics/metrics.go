// Package metrics provides Prometheus instrumentation for the keeper.
//
// It exposes operational metrics about the training pipeline, including
// the duration of each stage (collect, train, score), the size and age of
// the trained fleet, and error tracking. All metrics are exposed via the
// /metrics HTTP endpoint for Prometheus scraping.
//
// Metrics exposed:
//   - veloguard_adapter_collect_seconds: Histogram of snapshot collection duration
//   - veloguard_model_train_seconds: Histogram of per-station training duration
//   - veloguard_model_score_seconds: Histogram of scoring request duration
//   - veloguard_stations_trained: Gauge of stations with a current model
//   - veloguard_last_run_timestamp_seconds: Gauge of the last completed run
//   - veloguard_errors_total: Counter of errors by component and reason
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the keeper.
type Metrics struct {
	AdapterCollectSeconds   prometheus.Histogram
	ModelTrainSeconds       prometheus.Histogram
	ModelScoreSeconds       prometheus.Histogram
	StationsTrained         prometheus.Gauge
	LastRunTimestampSeconds prometheus.Gauge
	ErrorsTotal             *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New(adapter string) *Metrics {
	return &Metrics{
		AdapterCollectSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "veloguard_adapter_collect_seconds",
			Help: "Time spent collecting station snapshots from the adapter",
			ConstLabels: prometheus.Labels{
				"adapter": adapter,
			},
			Buckets: prometheus.DefBuckets,
		}),

		ModelTrainSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veloguard_model_train_seconds",
			Help:    "Time spent training one station's anomaly model",
			Buckets: prometheus.DefBuckets,
		}),

		ModelScoreSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veloguard_model_score_seconds",
			Help:    "Time spent serving a scoring or forecast request",
			Buckets: prometheus.DefBuckets,
		}),

		StationsTrained: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "veloguard_stations_trained",
			Help: "Number of stations with a model from the last run",
		}),

		LastRunTimestampSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "veloguard_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed training run",
		}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veloguard_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordCollect records the time spent collecting snapshots.
func (m *Metrics) RecordCollect(seconds float64) {
	m.AdapterCollectSeconds.Observe(seconds)
}

// RecordTrain records the time spent training one station.
func (m *Metrics) RecordTrain(seconds float64) {
	m.ModelTrainSeconds.Observe(seconds)
}

// RecordScore records the time spent serving a scoring request.
func (m *Metrics) RecordScore(seconds float64) {
	m.ModelScoreSeconds.Observe(seconds)
}

// SetStationsTrained sets the trained station count.
func (m *Metrics) SetStationsTrained(n int) {
	m.StationsTrained.Set(float64(n))
}

// SetLastRun sets the last completed run timestamp.
func (m *Metrics) SetLastRun(unixSeconds float64) {
	m.LastRunTimestampSeconds.Set(unixSeconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}

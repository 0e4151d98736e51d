package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/veloguard/veloguard/pkg/activity"
)

// Model is a trained per-(station, target column) forecaster. It is created
// per request and need not be persisted; retraining on demand with the same
// seed reproduces it exactly.
type Model struct {
	StationID int           `json:"station_id"`
	Target    TargetColumn  `json:"target_column"`
	Horizon   string        `json:"horizon"`
	Features  []string      `json:"features"`
	Forest    *RandomForest `json:"forest"`

	horizonDur time.Duration
}

// Train fits a forecast model for one station and target column.
//
// The station's history is turned into supervised rows (temporal encodings,
// lags, rolling extrema) whose target is the column's value one horizon
// later, joined on exact timestamp. Rows without a matched future record
// are dropped; an empty training set is an error, not a degenerate fit.
func Train(records []activity.Record, stationID int, target TargetColumn, horizon string, seed int64) (*Model, error) {
	dur, err := ParseHorizon(horizon)
	if err != nil {
		return nil, err
	}

	station := activity.FilterStation(records, stationID)
	if len(station) == 0 {
		return nil, fmt.Errorf("train forecast for station %d: no records", stationID)
	}

	rows := BuildFeatures(station, target)
	AttachTargets(rows, station, target, dur)

	x := make([][]float64, 0, len(rows))
	y := make([]float64, 0, len(rows))
	for i := range rows {
		if math.IsNaN(rows[i].Target) {
			continue
		}
		x = append(x, rows[i].Features[:])
		y = append(y, rows[i].Target)
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("train forecast for station %d: no rows with a matched %s target at horizon %s",
			stationID, target, horizon)
	}

	forest, err := FitRandomForest(x, y, seed)
	if err != nil {
		return nil, fmt.Errorf("train forecast for station %d: %w", stationID, err)
	}

	return &Model{
		StationID:  stationID,
		Target:     target,
		Horizon:    horizon,
		Features:   FeatureNames(target),
		Forest:     forest,
		horizonDur: dur,
	}, nil
}

// Forecast predicts the target column one horizon past the station's most
// recent record and rounds to the nearest integer.
//
// The temporal encodings are recomputed for the advanced timestamp while
// the lag and rolling features stay those observed at the last real tick:
// the model forecasts forward in one step, without recursion. The result is
// deliberately not clamped to a physical range; consumers that need
// non-negative or capacity-bounded values clamp downstream.
func (m *Model) Forecast(records []activity.Record) (int, error) {
	if m.Forest == nil {
		return 0, fmt.Errorf("station %d: forecast model is not trained", m.StationID)
	}

	station := activity.FilterStation(records, m.StationID)
	if len(station) == 0 {
		return 0, fmt.Errorf("forecast for station %d: no records", m.StationID)
	}

	dur := m.horizonDur
	if dur == 0 {
		parsed, err := ParseHorizon(m.Horizon)
		if err != nil {
			return 0, err
		}
		dur = parsed
	}

	rows := BuildFeatures(station, m.Target)
	latest := rows[len(rows)-1]

	setTemporal(&latest.Features, latest.Timestamp.Add(dur))

	predicted := m.Forest.Predict(latest.Features[:])
	return int(math.Round(predicted)), nil
}

package anomaly

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/veloguard/veloguard/pkg/activity"
	"github.com/veloguard/veloguard/pkg/profile"
)

// DefaultSteepness is the logistic steepness k of the score transform.
// Higher values sharpen the separation between normal and anomalous scores.
const DefaultSteepness = 20.0

// Labels returned by Predict.
const (
	LabelNormal  = 1
	LabelAnomaly = -1
)

// ErrStationMismatch is returned when a detector is asked to score records
// of a station it was not trained on.
var ErrStationMismatch = errors.New("record station does not match trained model")

// TrainConfig carries the calibration inputs for detector training.
type TrainConfig struct {
	// Filter removes the exclusion window and excluded stations before
	// calibration and fitting.
	Filter profile.FilterConfig

	// Seed drives all randomness in the fitted forest.
	Seed int64

	// Steepness overrides the logistic steepness k when > 0.
	Steepness float64
}

// Detector is a trained per-station anomaly model: standardizer, principal
// component projection, and contamination-calibrated isolation forest.
// It is immutable after Train and safe for concurrent use.
type Detector struct {
	StationID     int              `json:"station_id"`
	Tier          profile.Tier     `json:"activity_tier"`
	Contamination float64          `json:"contamination"`
	Seed          int64            `json:"seed"`
	Steepness     float64          `json:"steepness"`
	Scaler        StandardScaler   `json:"scaler"`
	Projection    PCA              `json:"pca"`
	Forest        *IsolationForest `json:"forest"`
	TrainedRows   int              `json:"trained_rows"`
}

// Train fits a detector for one station from a full feature history.
//
// The station's records are filtered (exclusion window, excluded stations)
// and restricted to status == 1. The forest's contamination rate is
// calibrated so that idle runs at or beyond the tier's acceptable threshold
// mark the boundary of normal behavior:
//
//	contamination = 1 - percentileRank(run lengths <= 144, tier threshold)/100
//
// Records must already carry the derived features from activity.ComputeFeatures.
func Train(records []activity.Record, stationID int, tier profile.Tier, cfg TrainConfig) (*Detector, error) {
	threshold, err := tier.IdleThreshold()
	if err != nil {
		return nil, fmt.Errorf("train station %d: %w", stationID, err)
	}

	station := activity.FilterStation(records, stationID)
	station = cfg.Filter.Apply(station)

	open := make([]activity.Record, 0, len(station))
	for _, r := range station {
		if r.Status == activity.StatusOpen {
			open = append(open, r)
		}
	}
	if len(open) < 2 {
		return nil, fmt.Errorf("train station %d: not enough open-station records (%d)", stationID, len(open))
	}

	runs := make([]float64, 0, len(open))
	for _, r := range open {
		if r.ConsecutiveNoTransactionsOut <= profile.MaxIdleRun {
			runs = append(runs, float64(r.ConsecutiveNoTransactionsOut))
		}
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("train station %d: no records within idle-run cap", stationID)
	}
	contamination := 1 - percentileOfScore(runs, float64(threshold))/100

	d := &Detector{
		StationID:     stationID,
		Tier:          tier,
		Contamination: contamination,
		Seed:          cfg.Seed,
		Steepness:     cfg.Steepness,
		TrainedRows:   len(open),
	}
	if d.Steepness <= 0 {
		d.Steepness = DefaultSteepness
	}

	matrix := featureMatrix(open)
	if err := d.Scaler.Fit(matrix); err != nil {
		return nil, fmt.Errorf("train station %d: %w", stationID, err)
	}
	scaled := d.Scaler.Transform(matrix)

	if err := d.Projection.Fit(scaled); err != nil {
		return nil, fmt.Errorf("train station %d: %w", stationID, err)
	}
	projected := d.Projection.Transform(scaled)

	forest, err := FitIsolationForest(projected, contamination, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("train station %d: %w", stationID, err)
	}
	d.Forest = forest

	return d, nil
}

// Predict labels each record +1 (normal) or -1 (anomaly). Records must
// belong to the trained station and carry the derived run-length feature
// computed identically to training.
func (d *Detector) Predict(records []activity.Record) ([]int, error) {
	decisions, err := d.decisions(records)
	if err != nil {
		return nil, err
	}

	labels := make([]int, len(decisions))
	for i, dec := range decisions {
		if dec < 0 {
			labels[i] = LabelAnomaly
		} else {
			labels[i] = LabelNormal
		}
	}
	return labels, nil
}

// Scores squashes each record's decision value into a probability-like
// anomaly score in (0, 100): well above 50 is anomalous, well below is
// normal.
func (d *Detector) Scores(records []activity.Record) ([]float64, error) {
	decisions, err := d.decisions(records)
	if err != nil {
		return nil, err
	}

	k := d.Steepness
	if k <= 0 {
		k = DefaultSteepness
	}

	scores := make([]float64, len(decisions))
	for i, dec := range decisions {
		scores[i] = 100 / (1 + math.Exp(k*dec))
	}
	return scores, nil
}

func (d *Detector) decisions(records []activity.Record) ([]float64, error) {
	if d.Forest == nil {
		return nil, fmt.Errorf("station %d: detector is not trained", d.StationID)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("station %d: no records to score", d.StationID)
	}
	for _, r := range records {
		if r.StationID != d.StationID {
			return nil, fmt.Errorf("%w: got station %d, model is for station %d",
				ErrStationMismatch, r.StationID, d.StationID)
		}
	}

	matrix := featureMatrix(records)
	projected := d.Projection.Transform(d.Scaler.Transform(matrix))

	decisions := make([]float64, len(projected))
	for i, row := range projected {
		decisions[i] = d.Forest.Decision(row)
	}
	return decisions, nil
}

// Marshal serializes the detector to a single opaque artifact.
func (d *Detector) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDetector restores a detector from its artifact bytes.
func UnmarshalDetector(data []byte) (*Detector, error) {
	var d Detector
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode anomaly model: %w", err)
	}
	if d.Forest == nil || len(d.Scaler.Means) == 0 || d.Projection.NumComponents() == 0 {
		return nil, errors.New("decode anomaly model: artifact is incomplete")
	}
	return &d, nil
}

// percentileOfScore returns the percentile rank of score within values,
// averaging the strict and weak ranks the way scipy does, in [0, 100].
func percentileOfScore(values []float64, score float64) float64 {
	if len(values) == 0 {
		return 0
	}
	strict, weak := 0, 0
	for _, v := range values {
		if v < score {
			strict++
		}
		if v <= score {
			weak++
		}
	}
	return float64(strict+weak) / 2 / float64(len(values)) * 100
}

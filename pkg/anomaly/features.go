// Package anomaly implements the per-station anomaly detection engine: a
// standardizer, a principal-component projection, and a seeded isolation
// forest whose contamination rate is calibrated from the station's activity
// tier. A trained detector is immutable, serializable to a single artifact,
// and only valid for the station it was trained on.
package anomaly

import (
	"github.com/veloguard/veloguard/pkg/activity"
)

// NumFeatures is the width of the detector's feature vector.
const NumFeatures = 7

// FeatureNames lists the detector inputs in column order.
var FeatureNames = []string{
	"consecutive_no_transactions_out",
	"sin_quarter", "cos_quarter",
	"sin_weekday", "cos_weekday",
	"sin_hour", "cos_hour",
}

// featureVector builds the 7-dimensional detector input for one record: the
// inactivity run length plus the cyclical encodings of quarter, weekday, and
// hour of its timestamp.
func featureVector(r activity.Record) [NumFeatures]float64 {
	e := activity.EncodeTime(r.Timestamp)
	return [NumFeatures]float64{
		float64(r.ConsecutiveNoTransactionsOut),
		e.SinQuarter, e.CosQuarter,
		e.SinWeekday, e.CosWeekday,
		e.SinHour, e.CosHour,
	}
}

// featureMatrix builds one row per record.
func featureMatrix(records []activity.Record) [][]float64 {
	rows := make([][]float64, len(records))
	for i, r := range records {
		v := featureVector(r)
		rows[i] = v[:]
	}
	return rows
}

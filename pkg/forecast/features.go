package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/veloguard/veloguard/pkg/activity"
)

// TargetColumn selects which availability series a model forecasts.
type TargetColumn string

const (
	TargetAvailableStands TargetColumn = "available_stands"
	TargetAvailableBikes  TargetColumn = "available_bikes"
)

// ParseTargetColumn validates a caller-supplied target column name.
func ParseTargetColumn(s string) (TargetColumn, error) {
	switch TargetColumn(s) {
	case TargetAvailableStands:
		return TargetAvailableStands, nil
	case TargetAvailableBikes:
		return TargetAvailableBikes, nil
	}
	return "", fmt.Errorf("unknown target column %q (want available_stands or available_bikes)", s)
}

func (c TargetColumn) value(r activity.Record) (float64, bool) {
	var p *int
	switch c {
	case TargetAvailableStands:
		p = r.AvailableStands
	case TargetAvailableBikes:
		p = r.AvailableBikes
	}
	if p == nil {
		return 0, false
	}
	return float64(*p), true
}

// Feature vector layout. Lag and rolling features are NaN until enough
// history has accumulated; the trees route missing values down the left
// branch.
const (
	featSinWeekday = iota
	featCosWeekday
	featSinHour
	featCosHour
	featSinMinute
	featCosMinute
	featLag1
	featLag2
	featLag3
	featRollMax1h
	featRollMax2h
	featRollMax1d
	featRollMax7d
	featRollMin1h
	featRollMin2h
	featRollMin1d
	featRollMin7d
	numFeatures
)

// rollingWindows are the rolling max/min window lengths in ticks:
// 1h, 2h, 1 day, 7 days at 10-minute resolution.
var rollingWindows = [4]int{6, 12, 144, 1008}

// FeatureNames lists the model inputs in column order for a target column.
func FeatureNames(target TargetColumn) []string {
	t := string(target)
	return []string{
		"sin_weekday", "cos_weekday",
		"sin_hour", "cos_hour",
		"sin_minute_bucket", "cos_minute_bucket",
		t + "_lag_1", t + "_lag_2", t + "_lag_3",
		t + "_rolling_max_6", t + "_rolling_max_12", t + "_rolling_max_1d", t + "_rolling_max_7d",
		t + "_rolling_min_6", t + "_rolling_min_12", t + "_rolling_min_1d", t + "_rolling_min_7d",
	}
}

// Row is one supervised example: the feature vector observed at Timestamp
// and, once AttachTargets has run, the target value one horizon later.
// Target is NaN while unmatched.
type Row struct {
	Timestamp time.Time
	Features  [numFeatures]float64
	Target    float64
}

// BuildFeatures constructs one row per record of a single station's
// ordered history: temporal encodings of the timestamp, lags 1-3 of the
// target column, and rolling max/min over the four windows. A rolling
// value is NaN until its window is completely observed, and whenever the
// window contains a missing reading.
func BuildFeatures(records []activity.Record, target TargetColumn) []Row {
	values := make([]float64, len(records))
	for i, r := range records {
		if v, ok := target.value(r); ok {
			values[i] = v
		} else {
			values[i] = math.NaN()
		}
	}

	rows := make([]Row, len(records))
	for i, r := range records {
		row := Row{Timestamp: r.Timestamp, Target: math.NaN()}
		setTemporal(&row.Features, r.Timestamp)

		for lag := 1; lag <= 3; lag++ {
			v := math.NaN()
			if i-lag >= 0 {
				v = values[i-lag]
			}
			row.Features[featLag1+lag-1] = v
		}

		for w, window := range rollingWindows {
			lo, hi := rollingWindow(values, i, window)
			row.Features[featRollMax1h+w] = hi
			row.Features[featRollMin1h+w] = lo
		}

		rows[i] = row
	}
	return rows
}

func setTemporal(f *[numFeatures]float64, t time.Time) {
	e := activity.EncodeTime(t)
	f[featSinWeekday], f[featCosWeekday] = e.SinWeekday, e.CosWeekday
	f[featSinHour], f[featCosHour] = e.SinHour, e.CosHour
	f[featSinMinute], f[featCosMinute] = e.SinMinuteBucket, e.CosMinuteBucket
}

// rollingWindow returns the min and max of the window ticks ending at index
// i inclusive, or NaNs if the window is not fully observed.
func rollingWindow(values []float64, i, window int) (lo, hi float64) {
	if i-window+1 < 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi = values[i], values[i]
	for j := i - window + 1; j <= i; j++ {
		v := values[j]
		if math.IsNaN(v) {
			return math.NaN(), math.NaN()
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// AttachTargets fills each row's target with the target-column value
// observed exactly one horizon later for the same station, joining on
// timestamp rather than position so gaps in the series never misalign the
// target. Rows with no matching future record keep a NaN target.
func AttachTargets(rows []Row, records []activity.Record, target TargetColumn, horizon time.Duration) {
	byTime := make(map[int64]float64, len(records))
	for _, r := range records {
		if v, ok := target.value(r); ok {
			byTime[r.Timestamp.UnixNano()] = v
		}
	}

	for i := range rows {
		future := rows[i].Timestamp.Add(horizon)
		if v, ok := byTime[future.UnixNano()]; ok {
			rows[i].Target = v
		} else {
			rows[i].Target = math.NaN()
		}
	}
}

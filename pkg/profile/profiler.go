// Package profile classifies stations into activity tiers from their
// historical checkout frequency. The tier feeds the anomaly detector's
// contamination calibration: how long a station may sit idle before that
// idleness looks like a malfunction depends on how busy the station
// normally is.
package profile

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/veloguard/veloguard/pkg/activity"
)

// MaxIdleRun caps the run-length records used for profiling and
// contamination calibration: 144 ticks is 24h at 10-minute resolution.
// Pathologically long idle runs (dead stations) would otherwise dominate
// the "typical activity" estimate.
const MaxIdleRun = 144

// tierBins is the number of equal-width bins used to classify mean activity.
const tierBins = 4

// FilterConfig removes records that would bias activity estimates: a fixed
// historical exclusion window (the 2020 covid lockdown, when usage collapsed
// system-wide) and stations not open to the public.
type FilterConfig struct {
	ExclusionStart   time.Time
	ExclusionEnd     time.Time
	ExcludedStations []int
}

// Apply returns the records outside the exclusion window and not belonging
// to an excluded station.
func (c FilterConfig) Apply(records []activity.Record) []activity.Record {
	excluded := make(map[int]struct{}, len(c.ExcludedStations))
	for _, id := range c.ExcludedStations {
		excluded[id] = struct{}{}
	}

	out := make([]activity.Record, 0, len(records))
	for _, r := range records {
		if _, skip := excluded[r.StationID]; skip {
			continue
		}
		if inWindow(r.Timestamp, c.ExclusionStart, c.ExclusionEnd) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func inWindow(t, start, end time.Time) bool {
	if start.IsZero() || end.IsZero() {
		return false
	}
	return !t.Before(start) && !t.After(end)
}

// StationProfile summarizes one station's checkout activity. The statistics
// describe the binary "a checkout happened this tick" indicator over the
// filtered history.
type StationProfile struct {
	StationID int     `json:"station_id"`
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Median    float64 `json:"median"`
	Std       float64 `json:"std"`
	P95       float64 `json:"p95"`
	P98       float64 `json:"p98"`
	P99       float64 `json:"p99"`
	Max       float64 `json:"max"`
	Tier      Tier    `json:"activity_tier"`
}

// Build computes one profile per station from a full feature history.
//
// Records are filtered (exclusion window, excluded stations), restricted to
// open stations with run lengths within MaxIdleRun, reduced to the binary
// checked-out indicator, aggregated per station, and finally classified into
// four equal-width tiers spanning [min(mean), max(mean)] across stations.
//
// Profiles are recomputed wholesale, never updated incrementally, and are
// returned sorted by station ID.
func Build(records []activity.Record, fc FilterConfig) []StationProfile {
	filtered := fc.Apply(records)

	indicators := make(map[int][]float64)
	for _, r := range filtered {
		if r.Status != activity.StatusOpen {
			continue
		}
		if r.ConsecutiveNoTransactionsOut > MaxIdleRun {
			continue
		}
		checkedOut := 0.0
		if r.TransactionsOut >= 1 {
			checkedOut = 1.0
		}
		indicators[r.StationID] = append(indicators[r.StationID], checkedOut)
	}

	profiles := make([]StationProfile, 0, len(indicators))
	for stationID, values := range indicators {
		profiles = append(profiles, summarize(stationID, values))
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].StationID < profiles[j].StationID })

	classifyTiers(profiles)
	return profiles
}

func summarize(stationID int, values []float64) StationProfile {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return StationProfile{
		StationID: stationID,
		Count:     len(values),
		Mean:      stat.Mean(values, nil),
		Median:    stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Std:       stat.StdDev(values, nil),
		P95:       stat.Quantile(0.95, stat.LinInterp, sorted, nil),
		P98:       stat.Quantile(0.98, stat.LinInterp, sorted, nil),
		P99:       stat.Quantile(0.99, stat.LinInterp, sorted, nil),
		Max:       sorted[len(sorted)-1],
	}
}

// classifyTiers assigns each profile the tier of the equal-width bin its
// mean falls into. Bin boundaries sit at min + i*(max-min)/4 for i=1..3;
// the maximum belongs to the last bin. These are width-equal bins, not
// frequency-equal quantiles: a handful of hyperactive stations should not
// drag ordinary ones into "very_high".
func classifyTiers(profiles []StationProfile) {
	if len(profiles) == 0 {
		return
	}

	lo, hi := profiles[0].Mean, profiles[0].Mean
	for _, p := range profiles[1:] {
		if p.Mean < lo {
			lo = p.Mean
		}
		if p.Mean > hi {
			hi = p.Mean
		}
	}

	width := (hi - lo) / tierBins
	for i := range profiles {
		if width == 0 {
			profiles[i].Tier = tierOrder[0]
			continue
		}
		bin := int((profiles[i].Mean - lo) / width)
		if bin >= tierBins {
			bin = tierBins - 1
		}
		profiles[i].Tier = tierOrder[bin]
	}
}

// Lookup returns the profile for a station, if present.
func Lookup(profiles []StationProfile, stationID int) (StationProfile, bool) {
	for _, p := range profiles {
		if p.StationID == stationID {
			return p, true
		}
	}
	return StationProfile{}, false
}

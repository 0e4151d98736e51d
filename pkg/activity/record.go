// Package activity defines the station activity record model and the
// feature pipeline that derives transaction counters and the per-station
// inactivity run-length counter from raw snapshots.
//
// Records arrive from an adapter as one row per (station, tick) at 10-minute
// resolution, sorted by (station_id, timestamp). The pipeline adds derived
// columns and never mutates the raw ones.
package activity

import (
	"sort"
	"time"
)

// TickResolution is the observation granularity of station snapshots.
const TickResolution = 10 * time.Minute

// Station status values as reported by the data source.
const (
	StatusClosed = 0
	StatusOpen   = 1
)

// Record is one observation of one station at one tick.
//
// AvailableStands and AvailableBikes are pointers because the source can
// report a tick with no reading (station unreachable); a nil value is "no
// data", which is distinct from zero.
type Record struct {
	StationID       int       `json:"station_id"`
	Timestamp       time.Time `json:"timestamp"`
	AvailableStands *int      `json:"available_stands"`
	AvailableBikes  *int      `json:"available_bikes"`
	Status          int       `json:"status"`

	// Derived by ComputeFeatures.
	TransactionsIn              int `json:"transactions_in"`
	TransactionsOut             int `json:"transactions_out"`
	TransactionsAll             int `json:"transactions_all"`
	ConsecutiveNoTransactionsOut int `json:"consecutive_no_transactions_out"`
}

// Int returns a pointer to v, for building records with nullable fields.
func Int(v int) *int {
	return &v
}

// SortRecords orders records by (station_id, timestamp) in place.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StationID != records[j].StationID {
			return records[i].StationID < records[j].StationID
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}

// Dedupe drops duplicate (station_id, timestamp) rows, keeping the first
// occurrence. Ingestion owns uniqueness, but adapters and test fixtures use
// this to enforce it before records reach the feature pipeline.
func Dedupe(records []Record) []Record {
	seen := make(map[recordKey]struct{}, len(records))
	out := records[:0]

	for _, r := range records {
		key := recordKey{r.StationID, r.Timestamp.UnixNano()}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	return out
}

type recordKey struct {
	station int
	ts      int64
}

// FilterStation returns the records belonging to a single station,
// preserving order.
func FilterStation(records []Record, stationID int) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.StationID == stationID {
			out = append(out, r)
		}
	}
	return out
}

// StationIDs returns the distinct station IDs present in records, ascending.
func StationIDs(records []Record) []int {
	seen := make(map[int]struct{})
	ids := make([]int, 0)
	for _, r := range records {
		if _, ok := seen[r.StationID]; !ok {
			seen[r.StationID] = struct{}{}
			ids = append(ids, r.StationID)
		}
	}
	sort.Ints(ids)
	return ids
}

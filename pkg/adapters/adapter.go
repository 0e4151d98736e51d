// Package adapters provides data source connectors that retrieve raw
// station status snapshots from external systems and normalize them into
// activity records.
//
// Each adapter implements the Adapter interface and can be plugged into
// the keeper's collection loop. Available adapters:
//   - HTTPAdapter — generic adapter for any REST feed with JSON responses
//
// Adapters are intentionally lightweight. They pull raw snapshots, shape
// them into [activity.Record] values, and leave feature engineering and
// model training to the upper layers.
package adapters

import (
	"context"
	"time"

	"github.com/veloguard/veloguard/pkg/activity"
)

// Adapter is the interface all station feed connectors implement.
//
// The Collect call is synchronous and should respect context cancellation
// and deadlines.
type Adapter interface {
	// Collect fetches station snapshots covering the last windowSeconds
	// and returns them sorted by station then timestamp, deduplicated.
	// It must handle transient errors gracefully and never panic.
	Collect(ctx context.Context, windowSeconds int) ([]activity.Record, error)

	// Name returns a short, unique identifier for the adapter.
	Name() string
}

// AlignTimestamp truncates a timestamp to a consistent step duration.
func AlignTimestamp(ts time.Time, stepSec int) time.Time {
	return ts.Truncate(time.Duration(stepSec) * time.Second)
}

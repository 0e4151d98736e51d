// Package forecast implements the per-station availability forecasting
// engine: lag and rolling-window feature construction, a horizon-shifted
// supervised target built by exact timestamp join, and a seeded
// random-forest regressor producing a single future value.
package forecast

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseHorizon parses a forecast horizon string such as "30m", "1h", "1d",
// or "1w" into a duration. Day and week suffixes are accepted on top of the
// standard Go duration units.
func ParseHorizon(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("horizon cannot be empty")
	}

	if n, ok := strings.CutSuffix(s, "d"); ok && !strings.ContainsAny(n, "hms") {
		days, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid horizon %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("horizon %q must be positive", s)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	if n, ok := strings.CutSuffix(s, "w"); ok && !strings.ContainsAny(n, "hms") {
		weeks, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid horizon %q: %w", s, err)
		}
		if weeks <= 0 {
			return 0, fmt.Errorf("horizon %q must be positive", s)
		}
		return time.Duration(weeks * 7 * 24 * float64(time.Hour)), nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid horizon %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("horizon %q must be positive", s)
	}
	return d, nil
}

package profile

import "fmt"

// Tier classifies a station's historical checkout activity. Tiers are
// ordered: low < medium < high < very_high.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierVeryHigh Tier = "very_high"
)

// tierOrder lists tiers in increasing order of activity; index i labels the
// i-th equal-width bin of the mean checkout rate.
var tierOrder = [4]Tier{TierLow, TierMedium, TierHigh, TierVeryHigh}

// IdleThresholds maps a tier to the longest no-checkout run, in ticks, that
// is still considered normal for stations of that tier. A busy station that
// goes 6 hours without a checkout is suspicious; a quiet one can idle a full
// day.
var IdleThresholds = map[Tier]int{
	TierVeryHigh: 36,  // 6h
	TierHigh:     54,  // 9h
	TierMedium:   72,  // 12h
	TierLow:      144, // 24h
}

// IdleThreshold returns the acceptable idle duration for the tier in ticks.
func (t Tier) IdleThreshold() (int, error) {
	v, ok := IdleThresholds[t]
	if !ok {
		return 0, fmt.Errorf("unknown activity tier %q", t)
	}
	return v, nil
}

// ParseTier validates a tier string, typically a caller-supplied override.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := IdleThresholds[t]; !ok {
		return "", fmt.Errorf("unknown activity tier %q (want low, medium, high, or very_high)", s)
	}
	return t, nil
}

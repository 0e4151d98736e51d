package activity

import (
	"math"
	"time"
)

// CycleEncode maps a cyclical value onto the unit circle so that the model
// sees 23:50 and 00:00 as neighbours. period is the number of distinct
// values the cycle can take (for example 24 for hour of day).
func CycleEncode(value, period float64) (sin, cos float64) {
	angle := 2 * math.Pi * value / period
	return math.Sin(angle), math.Cos(angle)
}

// Quarter returns the calendar quarter of t, 1 through 4.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// Weekday returns the day of week of t with Monday = 0 through Sunday = 6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// MinuteBucket returns the 10-minute slot within the hour of t, 0 through 5.
func MinuteBucket(t time.Time) int {
	return t.Minute() / 10
}

// TimeEncoding holds the sin/cos pairs of the temporal cycles used by the
// anomaly and forecast feature sets.
type TimeEncoding struct {
	SinQuarter, CosQuarter           float64
	SinWeekday, CosWeekday           float64
	SinHour, CosHour                 float64
	SinMinuteBucket, CosMinuteBucket float64
}

// EncodeTime computes every temporal encoding for a timestamp.
func EncodeTime(t time.Time) TimeEncoding {
	var e TimeEncoding
	e.SinQuarter, e.CosQuarter = CycleEncode(float64(Quarter(t)), 4)
	e.SinWeekday, e.CosWeekday = CycleEncode(float64(Weekday(t)), 7)
	e.SinHour, e.CosHour = CycleEncode(float64(t.Hour()), 24)
	e.SinMinuteBucket, e.CosMinuteBucket = CycleEncode(float64(MinuteBucket(t)), 6)
	return e
}

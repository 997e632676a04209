package occupancy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const dateKeyLayout = "2006-01-02"

// Enrich derives the per-reading fields from raw readings of a single lot.
// Output keeps the input order and length.
//
// Usage rates round to one decimal, half away from zero, using exact decimal
// arithmetic on the integer ratio (49 used of 400 is 12.25 and becomes 12.3).
// Readings outside [0, totalCapacity] are passed through with a rate outside
// [0, 100] rather than rejected.
func Enrich(readings []Reading, totalCapacity int) ([]EnrichedReading, error) {
	if totalCapacity <= 0 {
		return nil, fmt.Errorf("%w: total capacity must be positive, got %d", ErrConfiguration, totalCapacity)
	}

	out := make([]EnrichedReading, 0, len(readings))
	for _, r := range readings {
		used := totalCapacity - r.AvailableSpots
		out = append(out, EnrichedReading{
			Reading:       r,
			TotalCapacity: totalCapacity,
			UsedSpots:     used,
			UsageRate:     UsageRate(used, totalCapacity),
			Hour:          r.Timestamp.Hour(),
			DayOfWeek:     DayOfWeekOf(r.Timestamp),
			DateKey:       r.Timestamp.Format(dateKeyLayout),
		})
	}
	return out, nil
}

// UsageRate returns used/capacity as a percentage rounded to one decimal.
// capacity must be positive.
func UsageRate(used, capacity int) float64 {
	return decimal.NewFromInt(int64(used)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(capacity))).
		Round(1).
		InexactFloat64()
}

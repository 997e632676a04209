package occupancy

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

var taipei = time.FixedZone("CST", 8*60*60)

func at(year int, month time.Month, d, hour, minute int) time.Time {
	return time.Date(year, month, d, hour, minute, 0, 0, taipei)
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func mustEnrich(t *testing.T, readings []Reading, capacity int) []EnrichedReading {
	t.Helper()
	out, err := Enrich(readings, capacity)
	if err != nil {
		t.Fatalf("Enrich: unexpected error: %v", err)
	}
	return out
}

// randomReadings produces a time-ordered series at irregular intervals,
// including the occasional out-of-range availability value.
func randomReadings(rng *rand.Rand, n, capacity int) []Reading {
	ts := at(2024, time.March, 1, 0, 0)
	readings := make([]Reading, 0, n)
	for i := 0; i < n; i++ {
		ts = ts.Add(time.Duration(1+rng.Intn(90)) * time.Minute)
		avail := rng.Intn(capacity + 1)
		if rng.Float64() < 0.02 {
			avail = capacity + rng.Intn(10) + 1
		}
		readings = append(readings, Reading{Timestamp: ts, AvailableSpots: avail})
	}
	return readings
}

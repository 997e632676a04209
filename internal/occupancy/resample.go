package occupancy

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const day = 24 * time.Hour

// Named granularities offered by the dashboard.
const (
	Granularity5Min  = 5 * time.Minute
	Granularity15Min = 15 * time.Minute
	Granularity30Min = 30 * time.Minute
	GranularityHour  = time.Hour
	Granularity4Hour = 4 * time.Hour
	GranularityDay   = day
)

var namedGranularities = map[string]time.Duration{
	"5m":  Granularity5Min,
	"15m": Granularity15Min,
	"30m": Granularity30Min,
	"1h":  GranularityHour,
	"4h":  Granularity4Hour,
	"1d":  GranularityDay,
}

// ParseGranularity accepts one of the named granularities (5m, 15m, 30m, 1h,
// 4h, 1d) or any Go duration string that passes ValidateGranularity.
func ParseGranularity(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if g, ok := namedGranularities[s]; ok {
		return g, nil
	}
	g, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
	if err := ValidateGranularity(g); err != nil {
		return 0, err
	}
	return g, nil
}

// ValidateGranularity requires a positive width that tiles a day exactly, so
// every window is aligned to local midnight.
func ValidateGranularity(g time.Duration) error {
	if g <= 0 || day%g != 0 {
		return fmt.Errorf("%w: %s does not evenly divide 24h", ErrInvalidGranularity, g)
	}
	return nil
}

// WindowStart returns the start of the window of width g containing t,
// counting from local midnight of t's calendar date.
func WindowStart(t time.Time, g time.Duration) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	elapsed := t.Sub(midnight)
	return midnight.Add(elapsed - elapsed%g)
}

type bucketAcc struct {
	start        time.Time
	sumAvailable float64
	sumUsage     float64
	count        int
}

// Resample averages readings into left-closed, right-open windows of width g.
// Windows without readings are omitted, not zero-filled; the output is sorted
// by window start.
func Resample(readings []EnrichedReading, g time.Duration) ([]Bucket, error) {
	if err := ValidateGranularity(g); err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return []Bucket{}, nil
	}

	accs := make(map[int64]*bucketAcc)
	for _, r := range readings {
		start := WindowStart(r.Timestamp, g)
		key := start.UnixNano()
		acc, ok := accs[key]
		if !ok {
			acc = &bucketAcc{start: start}
			accs[key] = acc
		}
		acc.sumAvailable += float64(r.AvailableSpots)
		acc.sumUsage += r.UsageRate
		acc.count++
	}

	buckets := make([]Bucket, 0, len(accs))
	for _, acc := range accs {
		n := float64(acc.count)
		buckets = append(buckets, Bucket{
			Start:         acc.start,
			MeanAvailable: acc.sumAvailable / n,
			MeanUsageRate: acc.sumUsage / n,
			Count:         acc.count,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets, nil
}

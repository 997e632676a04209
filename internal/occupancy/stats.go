package occupancy

import (
	"fmt"
	"sort"
	"strconv"
)

// DefaultPeakThreshold is the usage rate, in percent, an hour's mean must
// exceed to count as a peak hour when no threshold is configured.
const DefaultPeakThreshold = 80.0

// NoPeakLabel is reported when no hour exceeds the peak threshold.
const NoPeakLabel = "none"

// SummaryOptions tunes Summarize.
type SummaryOptions struct {
	PeakThreshold float64
}

type meanAcc struct {
	sumUsage     float64
	sumAvailable float64
	count        int
}

func (m *meanAcc) add(r EnrichedReading) {
	m.sumUsage += r.UsageRate
	m.sumAvailable += float64(r.AvailableSpots)
	m.count++
}

func (m *meanAcc) meanUsage() float64 {
	if m == nil || m.count == 0 {
		return 0
	}
	return m.sumUsage / float64(m.count)
}

func (m *meanAcc) meanAvailable() float64 {
	if m == nil || m.count == 0 {
		return 0
	}
	return m.sumAvailable / float64(m.count)
}

// Summarize computes the dashboard's summary statistics and grouped tables.
// It returns ErrPrecondition on empty input: callers are expected to stop at
// ErrNoDataInRange before getting here, and extrema have no value without rows.
func Summarize(readings []EnrichedReading, opts SummaryOptions) (SummaryStats, error) {
	if len(readings) == 0 {
		return SummaryStats{}, fmt.Errorf("%w: summarize called with no readings", ErrPrecondition)
	}

	first := readings[0]
	stats := SummaryStats{
		ReadingCount:   len(readings),
		PeakThreshold:  opts.PeakThreshold,
		MaxAvailable:   Extremum{Value: float64(first.AvailableSpots), At: first.Timestamp},
		MinAvailable:   Extremum{Value: float64(first.AvailableSpots), At: first.Timestamp},
		MaxUsageRate:   Extremum{Value: first.UsageRate, At: first.Timestamp},
		MinUsageRate:   Extremum{Value: first.UsageRate, At: first.Timestamp},
		FirstReadingAt: first.Timestamp,
		LastReadingAt:  first.Timestamp,
	}

	var (
		total            meanAcc
		weekday, weekend meanAcc
		byHour           [24]*meanAcc
		byDateHour       = make(map[string]*[24]*meanAcc)
		byDayHour        [7][24]*meanAcc
	)

	for _, r := range readings {
		total.add(r)

		avail := float64(r.AvailableSpots)
		updateMax(&stats.MaxAvailable, avail, r)
		updateMin(&stats.MinAvailable, avail, r)
		updateMax(&stats.MaxUsageRate, r.UsageRate, r)
		updateMin(&stats.MinUsageRate, r.UsageRate, r)

		if r.Timestamp.Before(stats.FirstReadingAt) {
			stats.FirstReadingAt = r.Timestamp
		}
		if r.Timestamp.After(stats.LastReadingAt) {
			stats.LastReadingAt = r.Timestamp
		}

		if r.DayOfWeek.IsWeekend() {
			weekend.add(r)
		} else {
			weekday.add(r)
		}

		if r.Hour < 0 || r.Hour > 23 {
			continue
		}
		accFor(&byHour[r.Hour]).add(r)

		row, ok := byDateHour[r.DateKey]
		if !ok {
			row = new([24]*meanAcc)
			byDateHour[r.DateKey] = row
		}
		accFor(&row[r.Hour]).add(r)

		if r.DayOfWeek >= Sunday && r.DayOfWeek <= Saturday {
			accFor(&byDayHour[r.DayOfWeek-1][r.Hour]).add(r)
		}
	}

	stats.MeanUsageRate = total.meanUsage()
	stats.MeanAvailable = total.meanAvailable()
	stats.WeekdayMeanUsageRate = weekday.meanUsage()
	stats.WeekendMeanUsageRate = weekend.meanUsage()
	stats.WeekdayCount = weekday.count
	stats.WeekendCount = weekend.count

	stats.HourProfile = hourProfile(byHour)
	stats.PeakHours = PeakHours(stats.HourProfile, opts.PeakThreshold)
	stats.PeakLabel = PeakLabel(stats.PeakHours)
	stats.DateHourMatrix = dateHourMatrix(byDateHour)
	stats.WeekdayHourHeatmap = weekdayHourHeatmap(byDayHour)

	return stats, nil
}

func accFor(slot **meanAcc) *meanAcc {
	if *slot == nil {
		*slot = &meanAcc{}
	}
	return *slot
}

// updateMax and updateMin keep the earliest timestamp among equal extrema.
func updateMax(e *Extremum, v float64, r EnrichedReading) {
	if v > e.Value || (v == e.Value && r.Timestamp.Before(e.At)) {
		e.Value, e.At = v, r.Timestamp
	}
}

func updateMin(e *Extremum, v float64, r EnrichedReading) {
	if v < e.Value || (v == e.Value && r.Timestamp.Before(e.At)) {
		e.Value, e.At = v, r.Timestamp
	}
}

func hourProfile(byHour [24]*meanAcc) []HourStat {
	profile := make([]HourStat, 0, 24)
	for h, acc := range byHour {
		if acc == nil {
			continue
		}
		profile = append(profile, HourStat{
			Hour:          h,
			MeanUsageRate: acc.meanUsage(),
			MeanAvailable: acc.meanAvailable(),
			Count:         acc.count,
		})
	}
	return profile
}

// PeakHours returns, ascending, the hours whose mean usage rate is strictly
// above threshold.
func PeakHours(profile []HourStat, threshold float64) []int {
	hours := make([]int, 0)
	for _, h := range profile {
		if h.MeanUsageRate > threshold {
			hours = append(hours, h.Hour)
		}
	}
	sort.Ints(hours)
	return hours
}

// PeakLabel renders peak hours as "{min}:00-{max+1}:00". The hours are
// treated as one contiguous span even when they are not: {9,10,14} reads as
// "9:00-15:00". Consumers that need the exact set should use the hours.
func PeakLabel(hours []int) string {
	if len(hours) == 0 {
		return NoPeakLabel
	}
	lo, hi := hours[0], hours[0]
	for _, h := range hours[1:] {
		if h < lo {
			lo = h
		}
		if h > hi {
			hi = h
		}
	}
	return strconv.Itoa(lo) + ":00-" + strconv.Itoa(hi+1) + ":00"
}

func cells(accs *[24]*meanAcc) [24]*float64 {
	var out [24]*float64
	for h, acc := range accs {
		if acc == nil {
			continue
		}
		v := acc.meanUsage()
		out[h] = &v
	}
	return out
}

func dateHourMatrix(byDateHour map[string]*[24]*meanAcc) []MatrixRow {
	keys := make([]string, 0, len(byDateHour))
	for k := range byDateHour {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]MatrixRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, MatrixRow{Key: k, Cells: cells(byDateHour[k])})
	}
	return rows
}

func weekdayHourHeatmap(byDayHour [7][24]*meanAcc) []MatrixRow {
	rows := make([]MatrixRow, 0, 7)
	for i := range byDayHour {
		d := DayOfWeek(i + 1)
		rows = append(rows, MatrixRow{
			Key:   strconv.Itoa(int(d)),
			Label: d.Label(),
			Cells: cells(&byDayHour[i]),
		})
	}
	return rows
}

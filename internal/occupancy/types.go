package occupancy

import "time"

// DayOfWeek numbers the week from Sunday=1 through Saturday=7.
type DayOfWeek int

const (
	Sunday DayOfWeek = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

var dayLabels = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// DayOfWeekOf converts a Go weekday (Sunday=0) to the Sunday=1 numbering.
func DayOfWeekOf(t time.Time) DayOfWeek {
	return DayOfWeek(t.Weekday()) + 1
}

// IsWeekend reports whether d is Saturday or Sunday.
func (d DayOfWeek) IsWeekend() bool {
	return d == Sunday || d == Saturday
}

// Label returns the short weekday label shown on the heatmap axis.
func (d DayOfWeek) Label() string {
	if d < Sunday || d > Saturday {
		return "?"
	}
	return dayLabels[d-1]
}

// Reading is one raw availability observation for a lot.
type Reading struct {
	Timestamp      time.Time `json:"timestamp"` // local civil time of the lot
	AvailableSpots int       `json:"available_spots"`
}

// EnrichedReading is a Reading with the fields every chart groups on.
type EnrichedReading struct {
	Reading
	TotalCapacity int       `json:"total_capacity"`
	UsedSpots     int       `json:"used_spots"`
	UsageRate     float64   `json:"usage_rate"` // percent, one decimal
	Hour          int       `json:"hour"`
	DayOfWeek     DayOfWeek `json:"day_of_week"`
	DateKey       string    `json:"date_key"` // YYYY-MM-DD
}

// Bucket is one resampled point of the trend series.
type Bucket struct {
	Start         time.Time `json:"start"`
	MeanAvailable float64   `json:"mean_available"`
	MeanUsageRate float64   `json:"mean_usage_rate"`
	Count         int       `json:"count"`
}

// HourStat is one row of the hour-of-day profile.
type HourStat struct {
	Hour          int     `json:"hour"`
	MeanUsageRate float64 `json:"mean_usage_rate"`
	MeanAvailable float64 `json:"mean_available"`
	Count         int     `json:"count"`
}

// MatrixRow is one row of a 24-column hour matrix. A nil cell has no data,
// which the heatmap must render differently from a real 0% cell.
type MatrixRow struct {
	Key   string       `json:"key"`
	Label string       `json:"label,omitempty"`
	Cells [24]*float64 `json:"cells"`
}

// Extremum is a value together with the first timestamp that reached it.
type Extremum struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// SummaryStats is the read-only snapshot behind the dashboard cards and
// grouped charts.
type SummaryStats struct {
	ReadingCount  int     `json:"reading_count"`
	MeanAvailable float64 `json:"mean_available"`
	MeanUsageRate float64 `json:"mean_usage_rate"`

	MaxAvailable Extremum `json:"max_available"`
	MinAvailable Extremum `json:"min_available"`
	MaxUsageRate Extremum `json:"max_usage_rate"`
	MinUsageRate Extremum `json:"min_usage_rate"`

	FirstReadingAt time.Time `json:"first_reading_at"`
	LastReadingAt  time.Time `json:"last_reading_at"`

	PeakThreshold float64 `json:"peak_threshold"`
	PeakHours     []int   `json:"peak_hours"`
	PeakLabel     string  `json:"peak_label"`

	// An empty partition reports 0, so "no data" and "0% usage" look alike here.
	WeekdayMeanUsageRate float64 `json:"weekday_mean_usage_rate"`
	WeekendMeanUsageRate float64 `json:"weekend_mean_usage_rate"`
	WeekdayCount         int     `json:"weekday_count"`
	WeekendCount         int     `json:"weekend_count"`

	HourProfile        []HourStat  `json:"hour_profile"`
	DateHourMatrix     []MatrixRow `json:"date_hour_matrix"`
	WeekdayHourHeatmap []MatrixRow `json:"weekday_hour_heatmap"`
}

package occupancy

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestSummarizeEmptyInputFailsFast(t *testing.T) {
	_, err := Summarize(nil, SummaryOptions{PeakThreshold: DefaultPeakThreshold})
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestSummarizeTwoReadingScenario(t *testing.T) {
	readings := mustEnrich(t, []Reading{
		{Timestamp: at(2024, time.March, 4, 0, 0), AvailableSpots: 90},
		{Timestamp: at(2024, time.March, 4, 0, 5), AvailableSpots: 10},
	}, 100)

	if !approxEqual(readings[0].UsageRate, 10) || !approxEqual(readings[1].UsageRate, 90) {
		t.Fatalf("usage rates = %v, %v; want 10, 90", readings[0].UsageRate, readings[1].UsageRate)
	}

	stats, err := Summarize(readings, SummaryOptions{PeakThreshold: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(stats.MeanUsageRate, 50) || !approxEqual(stats.MeanAvailable, 50) {
		t.Fatalf("means = %v / %v, want 50 / 50", stats.MeanUsageRate, stats.MeanAvailable)
	}
	if stats.MaxAvailable.Value != 90 || !stats.MaxAvailable.At.Equal(readings[0].Timestamp) {
		t.Errorf("max available = %+v", stats.MaxAvailable)
	}
	if stats.MinAvailable.Value != 10 || !stats.MinAvailable.At.Equal(readings[1].Timestamp) {
		t.Errorf("min available = %+v", stats.MinAvailable)
	}
	if !stats.FirstReadingAt.Equal(readings[0].Timestamp) || !stats.LastReadingAt.Equal(readings[1].Timestamp) {
		t.Errorf("reading span = %v .. %v", stats.FirstReadingAt, stats.LastReadingAt)
	}
}

func TestSummarizeExtremaTieBreakEarliest(t *testing.T) {
	readings := mustEnrich(t, []Reading{
		{Timestamp: at(2024, time.March, 4, 10, 0), AvailableSpots: 10},
		{Timestamp: at(2024, time.March, 4, 10, 5), AvailableSpots: 5},
		{Timestamp: at(2024, time.March, 4, 10, 10), AvailableSpots: 10},
		{Timestamp: at(2024, time.March, 4, 10, 15), AvailableSpots: 5},
		// Out of order on purpose: earlier timestamp with the same extremum wins.
		{Timestamp: at(2024, time.March, 4, 9, 55), AvailableSpots: 5},
	}, 20)

	stats, err := Summarize(readings, SummaryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats.MaxAvailable.At.Equal(at(2024, time.March, 4, 10, 0)) {
		t.Errorf("max available at %v, want 10:00", stats.MaxAvailable.At)
	}
	if !stats.MinAvailable.At.Equal(at(2024, time.March, 4, 9, 55)) {
		t.Errorf("min available at %v, want 09:55", stats.MinAvailable.At)
	}
	if !stats.MaxUsageRate.At.Equal(stats.MinAvailable.At) || !approxEqual(stats.MaxUsageRate.Value, 75) {
		t.Errorf("max usage = %+v", stats.MaxUsageRate)
	}
	if !stats.FirstReadingAt.Equal(at(2024, time.March, 4, 9, 55)) {
		t.Errorf("first reading at %v", stats.FirstReadingAt)
	}
}

func TestSummarizePeakHoursScenario(t *testing.T) {
	readings := mustEnrich(t, []Reading{
		{Timestamp: at(2024, time.March, 4, 9, 0), AvailableSpots: 30},  // 70%
		{Timestamp: at(2024, time.March, 4, 10, 0), AvailableSpots: 15}, // 85%
		{Timestamp: at(2024, time.March, 4, 11, 0), AvailableSpots: 10}, // 90%
		{Timestamp: at(2024, time.March, 4, 12, 0), AvailableSpots: 45}, // 55%
	}, 100)

	stats, err := Summarize(readings, SummaryOptions{PeakThreshold: 60})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(stats.PeakHours, []int{9, 10, 11}) {
		t.Fatalf("peak hours = %v, want [9 10 11]", stats.PeakHours)
	}
	if stats.PeakLabel != "9:00-12:00" {
		t.Fatalf("peak label = %q, want 9:00-12:00", stats.PeakLabel)
	}

	stats, err = Summarize(readings, SummaryOptions{PeakThreshold: 95})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats.PeakHours) != 0 || stats.PeakLabel != NoPeakLabel {
		t.Fatalf("expected no peak, got %v %q", stats.PeakHours, stats.PeakLabel)
	}
}

func TestPeakLabelDoesNotCheckContiguity(t *testing.T) {
	if got := PeakLabel([]int{9, 10, 14}); got != "9:00-15:00" {
		t.Fatalf("PeakLabel = %q, want 9:00-15:00", got)
	}
	if got := PeakLabel([]int{23}); got != "23:00-24:00" {
		t.Fatalf("PeakLabel = %q, want 23:00-24:00", got)
	}
}

func TestPeakHoursMonotonicInThreshold(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	readings := mustEnrich(t, randomReadings(rng, 1500, 300), 300)
	stats, err := Summarize(readings, SummaryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prev := PeakHours(stats.HourProfile, -1)
	for threshold := 0.0; threshold <= 100; threshold += 2.5 {
		cur := PeakHours(stats.HourProfile, threshold)
		allowed := make(map[int]bool, len(prev))
		for _, h := range prev {
			allowed[h] = true
		}
		for _, h := range cur {
			if !allowed[h] {
				t.Fatalf("threshold %v added hour %d not present at lower threshold", threshold, h)
			}
		}
		prev = cur
	}
}

func TestSummarizeWeekendOnly(t *testing.T) {
	var raw []Reading
	for i := 0; i < 7; i++ {
		day := 2 + i%2 // Saturday 2nd, Sunday 3rd
		raw = append(raw, Reading{Timestamp: at(2024, time.March, day, 8+i, 0), AvailableSpots: 20})
	}
	stats, err := Summarize(mustEnrich(t, raw, 100), SummaryOptions{PeakThreshold: DefaultPeakThreshold})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.WeekdayMeanUsageRate != 0 || !approxEqual(stats.WeekendMeanUsageRate, 80) {
		t.Fatalf("weekday/weekend = %v / %v, want 0 / 80", stats.WeekdayMeanUsageRate, stats.WeekendMeanUsageRate)
	}
	if stats.WeekdayCount != 0 || stats.WeekendCount != 7 {
		t.Fatalf("partition counts = %d / %d", stats.WeekdayCount, stats.WeekendCount)
	}
}

func TestSummarizeWeekendPartitionCoverage(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	readings := mustEnrich(t, randomReadings(rng, 800, 120), 120)
	stats, err := Summarize(readings, SummaryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.WeekdayCount+stats.WeekendCount != len(readings) {
		t.Fatalf("partitions cover %d, want %d", stats.WeekdayCount+stats.WeekendCount, len(readings))
	}
	weekend := 0
	for _, r := range readings {
		if r.DayOfWeek.IsWeekend() {
			weekend++
		}
	}
	if weekend != stats.WeekendCount {
		t.Fatalf("weekend count = %d, want %d", stats.WeekendCount, weekend)
	}
}

func TestSummarizeGroupedTables(t *testing.T) {
	readings := mustEnrich(t, []Reading{
		{Timestamp: at(2024, time.March, 3, 8, 0), AvailableSpots: 50},  // Sunday 50%
		{Timestamp: at(2024, time.March, 3, 8, 30), AvailableSpots: 30}, // Sunday 70%
		{Timestamp: at(2024, time.March, 4, 8, 0), AvailableSpots: 100}, // Monday 0%
		{Timestamp: at(2024, time.March, 4, 17, 0), AvailableSpots: 20}, // Monday 80%
	}, 100)

	stats, err := Summarize(readings, SummaryOptions{PeakThreshold: DefaultPeakThreshold})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stats.HourProfile) != 2 {
		t.Fatalf("hour profile should only hold hours with data, got %+v", stats.HourProfile)
	}
	if stats.HourProfile[0].Hour != 8 || !approxEqual(stats.HourProfile[0].MeanUsageRate, 40) || stats.HourProfile[0].Count != 3 {
		t.Errorf("hour 8 = %+v", stats.HourProfile[0])
	}
	if stats.HourProfile[1].Hour != 17 || !approxEqual(stats.HourProfile[1].MeanUsageRate, 80) {
		t.Errorf("hour 17 = %+v", stats.HourProfile[1])
	}

	if len(stats.DateHourMatrix) != 2 {
		t.Fatalf("expected 2 date rows, got %d", len(stats.DateHourMatrix))
	}
	sunday, monday := stats.DateHourMatrix[0], stats.DateHourMatrix[1]
	if sunday.Key != "2024-03-03" || monday.Key != "2024-03-04" {
		t.Fatalf("date rows = %s, %s", sunday.Key, monday.Key)
	}
	if sunday.Cells[8] == nil || !approxEqual(*sunday.Cells[8], 60) {
		t.Errorf("sunday 08:00 cell = %v", sunday.Cells[8])
	}
	if sunday.Cells[17] != nil {
		t.Errorf("missing cell must be nil, got %v", *sunday.Cells[17])
	}
	if monday.Cells[8] == nil || *monday.Cells[8] != 0 {
		t.Errorf("true zero-usage cell must be present and 0, got %v", monday.Cells[8])
	}

	if len(stats.WeekdayHourHeatmap) != 7 {
		t.Fatalf("heatmap must always have 7 rows, got %d", len(stats.WeekdayHourHeatmap))
	}
	sun := stats.WeekdayHourHeatmap[0]
	if sun.Key != "1" || sun.Label != "日" || sun.Cells[8] == nil || !approxEqual(*sun.Cells[8], 60) {
		t.Errorf("sunday heatmap row = %+v", sun)
	}
	tue := stats.WeekdayHourHeatmap[2]
	for h, c := range tue.Cells {
		if c != nil {
			t.Fatalf("tuesday has no data but cell %d = %v", h, *c)
		}
	}
}

func TestAnalyzeNoDataInRange(t *testing.T) {
	_, err := Analyze(nil, 100, time.Hour, SummaryOptions{})
	if !errors.Is(err, ErrNoDataInRange) {
		t.Fatalf("expected ErrNoDataInRange, got %v", err)
	}
}

func TestAnalyzePropagatesConfigurationError(t *testing.T) {
	raw := []Reading{{Timestamp: at(2024, time.March, 4, 9, 0), AvailableSpots: 1}}
	if _, err := Analyze(raw, 0, time.Hour, SummaryOptions{}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	raw := randomReadings(rng, 1000, 180)
	opts := SummaryOptions{PeakThreshold: 60}

	first, err := Analyze(raw, 180, 15*time.Minute, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Analyze(raw, 180, 15*time.Minute, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("two runs over identical input produced different output")
	}
}

package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/sanspareilsmyn/parkinglens/internal/occupancy"
	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

const dateLayout = "2006-01-02"

// Query selects one lot over an inclusive range of local dates.
type Query struct {
	LotID       string
	StartDate   time.Time
	EndDate     time.Time
	Granularity time.Duration
}

// Report is the dashboard payload for one Query.
type Report struct {
	Lot     store.Lot              `json:"lot"`
	Query   Query                  `json:"query"`
	Trend   []occupancy.Bucket     `json:"trend"`
	Summary occupancy.SummaryStats `json:"summary"`
}

func (q Query) normalize(loc *time.Location) Query {
	q.LotID = strings.TrimSpace(q.LotID)
	q.StartDate = dateIn(q.StartDate, loc)
	q.EndDate = dateIn(q.EndDate, loc)
	return q
}

func (q Query) validate(maxRangeDays int) error {
	if q.LotID == "" {
		return fmt.Errorf("%w: lot id is required", ErrInvalidQuery)
	}
	if q.StartDate.IsZero() || q.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidRange)
	}
	if q.StartDate.After(q.EndDate) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			q.StartDate.Format(dateLayout), q.EndDate.Format(dateLayout))
	}
	if days := q.Days(); maxRangeDays > 0 && days > maxRangeDays {
		return fmt.Errorf("%w: %d days exceeds the limit of %d", ErrInvalidRange, days, maxRangeDays)
	}
	return occupancy.ValidateGranularity(q.Granularity)
}

// Days counts the calendar dates covered, both ends inclusive.
func (q Query) Days() int {
	return int((civilDay(q.EndDate)-civilDay(q.StartDate))/secondsPerDay) + 1
}

const secondsPerDay = 24 * 60 * 60

// civilDay returns the Unix seconds of t's calendar date at UTC midnight, so
// date differences are whole days regardless of DST in t's zone.
func civilDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

func (q Query) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		LotID       string `json:"lot_id"`
		StartDate   string `json:"start_date"`
		EndDate     string `json:"end_date"`
		Granularity string `json:"granularity"`
	}{
		LotID:       q.LotID,
		StartDate:   q.StartDate.Format(dateLayout),
		EndDate:     q.EndDate.Format(dateLayout),
		Granularity: q.Granularity.String(),
	})
}

// dateIn returns local midnight of t's calendar date in loc.
func dateIn(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate reads a YYYY-MM-DD date as local midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidRange, s)
	}
	return t, nil
}

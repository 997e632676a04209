package message

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// AvailabilityMessage is one real-time availability report for a parking lot
// as published on the ingest topic.
type AvailabilityMessage struct {
	LotID          string `json:"parking_lot_id" validate:"required,max=32"`
	RecordTime     string `json:"record_time" validate:"required"`
	AvailableCars  *int   `json:"available_cars" validate:"required"`
	AvailableMotor *int   `json:"available_motor,omitempty"`
}

// recordTimeFormats are tried in order. Formats without a zone are read in
// the caller-supplied location.
var recordTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseRecordTime parses RecordTime, reading zone-less values in loc.
func (m AvailabilityMessage) ParseRecordTime(loc *time.Location) (time.Time, error) {
	for _, format := range recordTimeFormats {
		if t, err := time.ParseInLocation(format, m.RecordTime, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRecordTime, m.RecordTime)
}

// Snippet returns a short description of the message for log lines, cut to
// at most maxLength bytes on a rune boundary.
func (m AvailabilityMessage) Snippet(maxLength int) string {
	cars := "<nil>"
	if m.AvailableCars != nil {
		cars = strconv.Itoa(*m.AvailableCars)
	}
	return truncate(fmt.Sprintf("lot=%s time=%s cars=%s", m.LotID, m.RecordTime, cars), maxLength)
}

// RawSnippet is Snippet for a payload that did not decode.
func RawSnippet(data []byte, maxLength int) string {
	return truncate(string(data), maxLength)
}

func truncate(s string, maxLength int) string {
	if maxLength <= 0 {
		return "..."
	}
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/sanspareilsmyn/parkinglens/internal/occupancy"
)

// insertChunkSize keeps a single INSERT well below the 65535 bind parameter limit.
const insertChunkSize = 1000

// ReadingsQuery selects one lot over an inclusive range of local calendar dates.
// Only the date part of Start and End is used.
type ReadingsQuery struct {
	LotID string
	Start time.Time
	End   time.Time
}

// RawReading is one ingested availability sample.
type RawReading struct {
	LotID         string
	RecordTime    time.Time
	AvailableCars int
}

func localMidnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// bounds returns [start midnight, day after end midnight) in loc.
func (q ReadingsQuery) bounds(loc *time.Location) (time.Time, time.Time) {
	from := localMidnight(q.Start, loc)
	to := localMidnight(q.End, loc).AddDate(0, 0, 1)
	return from, to
}

func readingsQuery(q ReadingsQuery, loc *time.Location) squirrel.SelectBuilder {
	from, to := q.bounds(loc)
	return builder().Select("record_time", "available_cars").
		From(tableRealtimeSpots).
		Where(squirrel.Eq{"parking_lot_id": q.LotID}).
		Where(squirrel.GtOrEq{"record_time": from}).
		Where(squirrel.Lt{"record_time": to}).
		Where(squirrel.GtOrEq{"available_cars": 0}).
		OrderBy("record_time")
}

func insertReadingsQuery(batch []RawReading) squirrel.InsertBuilder {
	q := builder().Insert(tableRealtimeSpots).Columns("parking_lot_id", "record_time", "available_cars")
	for _, r := range batch {
		q = q.Values(r.LotID, r.RecordTime, r.AvailableCars)
	}
	return q.Suffix("ON CONFLICT (parking_lot_id, record_time) DO NOTHING")
}

// Readings returns the lot's non-negative availability samples whose local
// date falls within [q.Start, q.End], ordered by time and expressed in the
// store location.
func (s *Store) Readings(ctx context.Context, q ReadingsQuery) ([]occupancy.Reading, error) {
	sql, args, err := readingsQuery(q, s.loc).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildQuery, err)
	}

	var readings []occupancy.Reading
	err = s.do(ctx, "readings", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		readings, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (occupancy.Reading, error) {
			var r occupancy.Reading
			if err := row.Scan(&r.Timestamp, &r.AvailableSpots); err != nil {
				return r, err
			}
			r.Timestamp = r.Timestamp.In(s.loc)
			return r, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return readings, nil
}

// InsertReadings writes samples in chunks, ignoring duplicates of
// (lot, record_time). It returns the number of rows actually inserted.
func (s *Store) InsertReadings(ctx context.Context, readings []RawReading) (int64, error) {
	for _, r := range readings {
		if r.LotID == "" || r.RecordTime.IsZero() {
			return 0, fmt.Errorf("%w: lot %q at %s", ErrInvalidReading, r.LotID, r.RecordTime)
		}
	}

	var inserted int64
	for start := 0; start < len(readings); start += insertChunkSize {
		end := min(start+insertChunkSize, len(readings))
		sql, args, err := insertReadingsQuery(readings[start:end]).ToSql()
		if err != nil {
			return inserted, fmt.Errorf("%w: %w", ErrBuildQuery, err)
		}
		err = s.do(ctx, "insert_readings", func(ctx context.Context) error {
			tag, err := s.db.Exec(ctx, sql, args...)
			if err != nil {
				return err
			}
			inserted += tag.RowsAffected()
			return nil
		})
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

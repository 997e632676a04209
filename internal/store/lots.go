package store

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// Lot is one catalog entry. TotalCars is the car capacity used for usage rates.
type Lot struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Area       string `json:"area"`
	TotalCars  int    `json:"total_cars"`
	TotalMotor int    `json:"total_motor"`
}

var lotColumns = []string{"id", "name", "area", "total_cars", "total_motor"}

func listLotsQuery() squirrel.SelectBuilder {
	return builder().Select(lotColumns...).
		From(tableParkingLots).
		Where(squirrel.Gt{"total_cars": 0}).
		OrderBy("name", "id")
}

func getLotQuery(id string) squirrel.SelectBuilder {
	return builder().Select(lotColumns...).
		From(tableParkingLots).
		Where(squirrel.Eq{"id": id}).
		Limit(1)
}

func upsertLotsQuery(lots []Lot) squirrel.InsertBuilder {
	q := builder().Insert(tableParkingLots).Columns(lotColumns...)
	for _, l := range lots {
		q = q.Values(l.ID, l.Name, l.Area, l.TotalCars, l.TotalMotor)
	}
	return q.Suffix(`ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, area = EXCLUDED.area, ` +
		`total_cars = EXCLUDED.total_cars, total_motor = EXCLUDED.total_motor`)
}

func scanLot(row pgx.CollectableRow) (Lot, error) {
	var l Lot
	err := row.Scan(&l.ID, &l.Name, &l.Area, &l.TotalCars, &l.TotalMotor)
	return l, err
}

// ListLots returns lots with a positive car capacity, ordered by name.
func (s *Store) ListLots(ctx context.Context) ([]Lot, error) {
	sql, args, err := listLotsQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuildQuery, err)
	}

	var lots []Lot
	err = s.do(ctx, "list_lots", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		lots, err = pgx.CollectRows(rows, scanLot)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lots, nil
}

// GetLot returns ErrNotFound when id is not in the catalog.
func (s *Store) GetLot(ctx context.Context, id string) (Lot, error) {
	sql, args, err := getLotQuery(id).ToSql()
	if err != nil {
		return Lot{}, fmt.Errorf("%w: %w", ErrBuildQuery, err)
	}

	var lot Lot
	err = s.do(ctx, "get_lot", func(ctx context.Context) error {
		rows, err := s.db.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		lot, err = pgx.CollectOneRow(rows, scanLot)
		return err
	})
	if err != nil {
		return Lot{}, err
	}
	return lot, nil
}

// UpsertLots inserts or refreshes catalog entries.
func (s *Store) UpsertLots(ctx context.Context, lots []Lot) error {
	if len(lots) == 0 {
		return nil
	}
	sql, args, err := upsertLotsQuery(lots).ToSql()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildQuery, err)
	}
	return s.do(ctx, "upsert_lots", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, sql, args...)
		return err
	})
}

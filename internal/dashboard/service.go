// Package dashboard assembles per-lot occupancy reports from the catalog and
// the reading history, memoizing both.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sanspareilsmyn/parkinglens/internal/cache"
	"github.com/sanspareilsmyn/parkinglens/internal/occupancy"
	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

const catalogKey = "lots"

// sharedFetchTimeout bounds a fetch that outlives the caller that started it.
const sharedFetchTimeout = 30 * time.Second

// RowSource returns the raw readings of one lot over a local date range.
type RowSource interface {
	Readings(ctx context.Context, q store.ReadingsQuery) ([]occupancy.Reading, error)
}

// Catalog lists the known lots.
type Catalog interface {
	ListLots(ctx context.Context) ([]store.Lot, error)
}

type Options struct {
	Location      *time.Location
	PeakThreshold float64
	MaxRangeDays  int
}

type Service struct {
	rows     RowSource
	catalog  Catalog
	readings *cache.TTLCache[[]occupancy.Reading]
	lots     *cache.TTLCache[[]store.Lot]
	group    singleflight.Group
	opts     Options
	logger   *zap.Logger
}

func New(
	rows RowSource,
	catalog Catalog,
	readings *cache.TTLCache[[]occupancy.Reading],
	lots *cache.TTLCache[[]store.Lot],
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{
		rows:     rows,
		catalog:  catalog,
		readings: readings,
		lots:     lots,
		opts:     opts,
		logger:   logger,
	}
}

// ListLots returns the catalog, memoized for the catalog TTL.
func (s *Service) ListLots(ctx context.Context) ([]store.Lot, error) {
	if lots, ok := s.lots.Get(catalogKey); ok {
		return lots, nil
	}

	v, err, shared := s.shared(ctx, "catalog", func(ctx context.Context) (interface{}, error) {
		lots, err := s.catalog.ListLots(ctx)
		if err != nil {
			return nil, err
		}
		s.lots.Set(catalogKey, lots)
		return lots, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: catalog: %w", ErrFetchFailed, err)
	}
	lots := v.([]store.Lot)
	s.logger.Debug("Catalog loaded", zap.Int("lots", len(lots)), zap.Bool("shared", shared))
	return lots, nil
}

// Lot returns the catalog entry with the given id. A miss on a memoized
// catalog reloads it once so lots seeded since the last load are found.
func (s *Service) Lot(ctx context.Context, id string) (store.Lot, error) {
	_, cached := s.lots.Get(catalogKey)
	for {
		lots, err := s.ListLots(ctx)
		if err != nil {
			return store.Lot{}, err
		}
		if l, ok := findLot(lots, id); ok {
			return l, nil
		}
		if !cached {
			return store.Lot{}, fmt.Errorf("%w: %q", ErrLotNotFound, id)
		}
		s.lots.Delete(catalogKey)
		cached = false
	}
}

func findLot(lots []store.Lot, id string) (store.Lot, bool) {
	for _, l := range lots {
		if l.ID == id {
			return l, true
		}
	}
	return store.Lot{}, false
}

// Build runs one pass of the occupancy pipeline for q. A range without
// readings fails with occupancy.ErrNoDataInRange before any computation.
func (s *Service) Build(ctx context.Context, q Query) (Report, error) {
	start := time.Now()
	report, err := s.build(ctx, q)
	buildDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	return report, err
}

func (s *Service) build(ctx context.Context, q Query) (Report, error) {
	q = q.normalize(s.opts.Location)
	if err := q.validate(s.opts.MaxRangeDays); err != nil {
		return Report{}, err
	}

	lot, err := s.Lot(ctx, q.LotID)
	if err != nil {
		return Report{}, err
	}

	readings, err := s.fetchReadings(ctx, lot, q)
	if err != nil {
		return Report{}, err
	}
	if len(readings) == 0 {
		return Report{}, occupancy.ErrNoDataInRange
	}

	result, err := occupancy.Analyze(readings, lot.TotalCars, q.Granularity, occupancy.SummaryOptions{
		PeakThreshold: s.opts.PeakThreshold,
	})
	if err != nil {
		return Report{}, err
	}

	s.logger.Debug("Dashboard built",
		zap.String("lot_id", lot.ID),
		zap.String("start", q.StartDate.Format(dateLayout)),
		zap.String("end", q.EndDate.Format(dateLayout)),
		zap.Duration("granularity", q.Granularity),
		zap.Int("readings", len(readings)),
		zap.Int("buckets", len(result.Trend)),
	)

	return Report{
		Lot:     lot,
		Query:   q,
		Trend:   result.Trend,
		Summary: result.Summary,
	}, nil
}

// fetchReadings memoizes by (lot, start, end, capacity) and collapses
// concurrent identical fetches into one query.
func (s *Service) fetchReadings(ctx context.Context, lot store.Lot, q Query) ([]occupancy.Reading, error) {
	key := fmt.Sprintf("%s|%s|%s|%d", lot.ID, q.StartDate.Format(dateLayout), q.EndDate.Format(dateLayout), lot.TotalCars)
	if rows, ok := s.readings.Get(key); ok {
		return rows, nil
	}

	v, err, _ := s.shared(ctx, "readings|"+key, func(ctx context.Context) (interface{}, error) {
		rows, err := s.rows.Readings(ctx, store.ReadingsQuery{
			LotID: lot.ID,
			Start: q.StartDate,
			End:   q.EndDate,
		})
		if err != nil {
			return nil, err
		}
		s.readings.Set(key, rows)
		return rows, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: readings for %s: %w", ErrFetchFailed, lot.ID, err)
	}
	return v.([]occupancy.Reading), nil
}

// shared runs fn once per key across concurrent callers. fn runs detached
// from any single caller's cancellation; each caller still stops waiting
// when its own ctx is done.
func (s *Service) shared(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error, bool) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		return nil, ctx.Err(), false
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, occupancy.ErrNoDataInRange):
		return "no_data"
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrInvalidQuery),
		errors.Is(err, occupancy.ErrInvalidGranularity), errors.Is(err, ErrLotNotFound):
		return "rejected"
	default:
		return "error"
	}
}

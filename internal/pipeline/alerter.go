package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/parkinglens/internal/cache"
	"github.com/sanspareilsmyn/parkinglens/internal/occupancy"
	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

// Alerter publishes per-lot gauges and flags samples above the peak threshold.
type Alerter struct {
	threshold  float64
	input      <-chan Observation
	lots       LotLookup
	capacities *cache.TTLCache[int]
	logger     *zap.Logger
}

// NewAlerter creates an Alerter. Capacities are memoized in capacities,
// including a zero for lots missing from the catalog.
func NewAlerter(threshold float64, input <-chan Observation, lots LotLookup, capacities *cache.TTLCache[int], logger *zap.Logger) *Alerter {
	logger.Debug("Alerter initialized", zap.Float64("peak_threshold", threshold))
	return &Alerter{
		threshold:  threshold,
		input:      input,
		lots:       lots,
		capacities: capacities,
		logger:     logger,
	}
}

// Run processes observations until the input closes or ctx is cancelled.
func (a *Alerter) Run(ctx context.Context) error {
	sugar := a.logger.Sugar()
	sugar.Info("Starting alerter loop...")
	defer sugar.Info("Alerter loop stopped.")

	for {
		select {
		case obs, ok := <-a.input:
			if !ok {
				sugar.Info("Alerter input channel closed.")
				return nil
			}
			a.processObservation(ctx, obs)

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping alerter.")
			return ctx.Err()
		}
	}
}

func (a *Alerter) processObservation(ctx context.Context, obs Observation) {
	if obs.AvailableCars < 0 {
		// Sensor fault marker; stored, but excluded from analytics.
		return
	}
	lotAvailable.WithLabelValues(obs.LotID).Set(float64(obs.AvailableCars))

	capacity, ok := a.capacity(ctx, obs.LotID)
	if !ok {
		return
	}

	rate := occupancy.UsageRate(capacity-obs.AvailableCars, capacity)
	lotUsageRate.WithLabelValues(obs.LotID).Set(rate)

	if rate > a.threshold {
		a.logger.Sugar().Warnw("High usage",
			zap.String("lot_id", obs.LotID),
			zap.Time("record_time", obs.RecordTime),
			zap.Float64("usage_rate", rate),
			zap.Float64("threshold", a.threshold),
			zap.Int("available_cars", obs.AvailableCars),
			zap.Int("total_cars", capacity),
		)
		lotHighUsage.WithLabelValues(obs.LotID).Inc()
	}
}

// capacity returns the lot's car capacity, or false when it is unknown or zero.
func (a *Alerter) capacity(ctx context.Context, lotID string) (int, bool) {
	if c, ok := a.capacities.Get(lotID); ok {
		return c, c > 0
	}

	lot, err := a.lots.GetLot(ctx, lotID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		a.logger.Debug("Lot not in catalog, usage rate unavailable", zap.String("lot_id", lotID))
		a.capacities.Set(lotID, 0)
		return 0, false
	case err != nil:
		a.logger.Warn("Capacity lookup failed", zap.String("lot_id", lotID), zap.Error(err))
		return 0, false
	}

	a.capacities.Set(lotID, lot.TotalCars)
	return lot.TotalCars, lot.TotalCars > 0
}

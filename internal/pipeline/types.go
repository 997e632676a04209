package pipeline

import (
	"context"
	"time"

	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

// Observation is a parsed availability sample travelling through the pipeline.
type Observation struct {
	LotID         string
	RecordTime    time.Time
	AvailableCars int
}

func (o Observation) row() store.RawReading {
	return store.RawReading{
		LotID:         o.LotID,
		RecordTime:    o.RecordTime,
		AvailableCars: o.AvailableCars,
	}
}

// ReadingWriter persists batches of samples.
type ReadingWriter interface {
	InsertReadings(ctx context.Context, readings []store.RawReading) (int64, error)
}

// LotLookup resolves a lot's catalog entry for its capacity.
type LotLookup interface {
	GetLot(ctx context.Context, id string) (store.Lot, error)
}

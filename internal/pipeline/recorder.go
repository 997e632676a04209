package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/parkinglens/internal/config"
	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

const shutdownFlushTimeout = 10 * time.Second

// Recorder batches observations into realtime_spots and forwards each one
// to the alerter. A batch is written when it reaches BatchSize or when the
// flush ticker fires, whichever comes first.
type Recorder struct {
	cfg    config.IngestConfig
	input  <-chan Observation
	output chan<- Observation
	writer ReadingWriter
	logger *zap.Logger

	batch []store.RawReading
}

func NewRecorder(cfg config.IngestConfig, input <-chan Observation, output chan<- Observation, writer ReadingWriter, logger *zap.Logger) *Recorder {
	logger.Info("Recorder initialized",
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("flush_interval", cfg.FlushInterval),
	)
	return &Recorder{
		cfg:    cfg,
		input:  input,
		output: output,
		writer: writer,
		logger: logger,
		batch:  make([]store.RawReading, 0, cfg.BatchSize),
	}
}

// Run consumes observations until the input closes or ctx is cancelled.
// The pending batch is written in both cases.
func (r *Recorder) Run(ctx context.Context) error {
	sugar := r.logger.Sugar()
	sugar.Info("Starting recorder loop...")
	defer sugar.Info("Recorder loop stopped.")

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case obs, ok := <-r.input:
			if !ok {
				sugar.Info("Recorder input channel closed. Writing final batch...")
				r.flushDetached(ctx)
				return nil
			}
			r.batch = append(r.batch, obs.row())
			r.forward(ctx, obs)
			if len(r.batch) >= r.cfg.BatchSize {
				r.flush(ctx, "size")
			}

		case <-ticker.C:
			r.flush(ctx, "interval")

		case <-ctx.Done():
			sugar.Info("Context cancelled, stopping recorder. Writing final batch...")
			r.flushDetached(ctx)
			return ctx.Err()
		}
	}
}

func (r *Recorder) forward(ctx context.Context, obs Observation) {
	if r.output == nil {
		return
	}
	select {
	case r.output <- obs:
	case <-ctx.Done():
	}
}

// flushDetached writes the pending batch on shutdown, outliving ctx for a bounded time.
func (r *Recorder) flushDetached(ctx context.Context) {
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	r.flush(flushCtx, "shutdown")
}

func (r *Recorder) flush(ctx context.Context, trigger string) {
	if len(r.batch) == 0 {
		return
	}
	rows := r.batch
	r.batch = make([]store.RawReading, 0, r.cfg.BatchSize)

	inserted, err := r.writer.InsertReadings(ctx, rows)
	if err != nil {
		writeFailures.Add(float64(len(rows) - int(inserted)))
		r.logger.Error("Failed to write batch",
			zap.String("trigger", trigger),
			zap.Int("rows", len(rows)),
			zap.Int64("inserted", inserted),
			zap.Error(err),
		)
		return
	}

	rowsWritten.Add(float64(inserted))
	r.logger.Debug("Batch written",
		zap.String("trigger", trigger),
		zap.Int("rows", len(rows)),
		zap.Int64("inserted", inserted),
		zap.Int64("duplicates", int64(len(rows))-inserted),
	)
}

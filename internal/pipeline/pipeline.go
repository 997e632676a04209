package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/parkinglens/internal/cache"
	"github.com/sanspareilsmyn/parkinglens/internal/config"
)

const channelBufferSize = 100

// Pipeline wires the ingest stages: consumer, parser, recorder, alerter.
type Pipeline struct {
	consumer *Consumer
	recorder *Recorder
	alerter  *Alerter
	loc      *time.Location
	logger   *zap.Logger

	rawMessages  chan []byte
	observations chan Observation
	recorded     chan Observation
}

// New creates the ingest pipeline. Rows go to writer; lots supplies the
// capacities behind the usage gauges.
func New(cfg *config.Config, writer ReadingWriter, lots LotLookup, logger *zap.Logger) (*Pipeline, error) {
	if writer == nil || lots == nil {
		return nil, ErrMissingDependency
	}
	initLogger := logger.Named("pipeline.init")

	rawMessages := make(chan []byte, channelBufferSize)
	observations := make(chan Observation, channelBufferSize)
	recorded := make(chan Observation, channelBufferSize)

	consumer, err := NewConsumer(cfg.Kafka, rawMessages, logger.Named("consumer"))
	if err != nil {
		initLogger.Error("Failed to create consumer", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConsumerCreationFailed, err)
	}

	p := &Pipeline{
		consumer:     consumer,
		loc:          cfg.Analytics.Location(),
		logger:       logger.Named("pipeline"),
		rawMessages:  rawMessages,
		observations: observations,
		recorded:     recorded,
	}
	p.recorder = NewRecorder(cfg.Ingest, observations, recorded, writer, logger.Named("recorder"))
	p.alerter = NewAlerter(cfg.Analytics.PeakThreshold, recorded, lots,
		cache.New[int](cfg.Cache.CatalogTTL, nil), logger.Named("alerter"))

	initLogger.Info("Pipeline instance created successfully")
	return p, nil
}

// Run starts all stages and waits for them to finish. It returns nil on
// cancellation and the first component error otherwise.
func (p *Pipeline) Run(ctx context.Context) error {
	sugar := p.logger.Sugar()
	var wg sync.WaitGroup
	pipelineErr := make(chan error, 3) // consumer, recorder, alerter

	sugar.Info("Pipeline Run: Starting components...")

	// A component error cancels the rest so they drain and exit.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(4)
	go p.runConsumer(runCtx, &wg, pipelineErr)
	go p.runParser(runCtx, &wg)
	go p.runRecorder(runCtx, &wg, pipelineErr)
	go p.runAlerter(runCtx, &wg, pipelineErr)

	var firstErr error
	select {
	case <-ctx.Done():
		sugar.Info("Pipeline Run: Context cancelled. Waiting for components to finish...")
		firstErr = ctx.Err()
	case err := <-pipelineErr:
		sugar.Errorw("Pipeline Run: Received error from a component, initiating shutdown...", zap.Error(err))
		firstErr = err
		cancel()
	}

	wg.Wait()
	sugar.Info("Pipeline Run: All components finished.")

	if firstErr != nil && !errors.Is(firstErr, context.Canceled) {
		return firstErr
	}
	return nil
}

func (p *Pipeline) runConsumer(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer close(p.rawMessages)

	if err := p.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Consumer component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrConsumerRunFailed, err)
	}
}

func (p *Pipeline) runParser(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	defer close(p.observations)

	parserLogger := p.logger.Named("parser").Sugar()

	for {
		select {
		case raw, ok := <-p.rawMessages:
			if !ok {
				parserLogger.Debug("Parser finished (raw message channel closed).")
				return
			}

			obs, fail := parseObservation(raw, p.loc)
			if fail != nil {
				parseFailures.WithLabelValues(fail.reason).Inc()
				parserLogger.Warnw("Failed to parse message, skipping",
					"reason", fail.reason,
					"size", len(raw),
					"message", fail.snippet,
					zap.Error(fail.err),
				)
				continue
			}

			select {
			case p.observations <- obs:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (p *Pipeline) runRecorder(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	defer close(p.recorded)

	if err := p.recorder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Recorder component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrRecorderRunFailed, err)
	}
}

func (p *Pipeline) runAlerter(ctx context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()

	if err := p.alerter.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("Alerter component exited with error", zap.Error(err))
		errCh <- fmt.Errorf("%w: %w", ErrAlerterRunFailed, err)
	}
}

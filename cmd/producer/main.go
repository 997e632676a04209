package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/parkinglens/internal/config"
	"github.com/sanspareilsmyn/parkinglens/internal/logging"
	"github.com/sanspareilsmyn/parkinglens/internal/message"
)

var (
	configFile = flag.String("config", "configs/config.dev.yaml", "Path to the configuration file")
	interval   = flag.Duration("interval", time.Second, "Delay between produced rounds")
)

// sampleLot is a synthetic lot whose availability follows a daily curve.
type sampleLot struct {
	id        string
	totalCars int
	available int
}

var sampleLots = []*sampleLot{
	{id: "TPE0410", totalCars: 1957},
	{id: "TPE0001", totalCars: 430},
	{id: "TPE0072", totalCars: 210},
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration from %s: %v\n", *configFile, err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{}, // keep each lot on one partition
	}
	defer func() {
		if err := writer.Close(); err != nil {
			sugar.Errorw("Error closing kafka writer", zap.Error(err))
		}
	}()
	sugar.Infow("Starting sample producer", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		sugar.Info("Shutdown signal received, stopping producer...")
		cancel()
	}()

	loc := cfg.Analytics.Location()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().In(loc)
			msgs := make([]kafka.Message, 0, len(sampleLots))
			for _, lot := range sampleLots {
				value, err := json.Marshal(lot.next(now, rng))
				if err != nil {
					sugar.Warnw("Error marshalling message", zap.Error(err))
					continue
				}
				msgs = append(msgs, kafka.Message{Key: []byte(lot.id), Value: value})
			}

			if err := writer.WriteMessages(ctx, msgs...); err != nil {
				if ctx.Err() != nil {
					return
				}
				sugar.Warnw("Error writing messages", zap.Error(err))
				continue
			}
			sugar.Debugw("Produced round", "messages", len(msgs))

		case <-ctx.Done():
			sugar.Info("Producer loop stopped.")
			return
		}
	}
}

// next returns the lot's sample at now: busy around office hours, quiet
// overnight, with noise and an occasional malformed reading.
func (l *sampleLot) next(now time.Time, rng *rand.Rand) message.AvailabilityMessage {
	hour := now.Hour()
	busy := 0.2
	switch {
	case hour >= 8 && hour < 18:
		busy = 0.85
	case hour >= 18 && hour < 22:
		busy = 0.55
	}
	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		busy *= 0.7
	}

	used := int(float64(l.totalCars)*busy + rng.NormFloat64()*float64(l.totalCars)*0.05)
	l.available = min(max(l.totalCars-used, 0), l.totalCars)

	available := l.available
	if rng.Float64() < 0.01 {
		available = -9 // sensor fault; filtered on read
	}

	return message.AvailabilityMessage{
		LotID:         l.id,
		RecordTime:    now.Format(time.RFC3339),
		AvailableCars: &available,
	}
}

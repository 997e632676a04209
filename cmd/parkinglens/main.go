package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/sanspareilsmyn/parkinglens/internal/api"
	"github.com/sanspareilsmyn/parkinglens/internal/cache"
	"github.com/sanspareilsmyn/parkinglens/internal/config"
	"github.com/sanspareilsmyn/parkinglens/internal/dashboard"
	"github.com/sanspareilsmyn/parkinglens/internal/logging"
	"github.com/sanspareilsmyn/parkinglens/internal/occupancy"
	"github.com/sanspareilsmyn/parkinglens/internal/pipeline"
	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

const (
	modeAll     = "all"
	modeServe   = "serve"
	modeIngest  = "ingest"
	modeMigrate = "migrate"

	shutdownTimeout = 15 * time.Second
	purgeInterval   = time.Minute
)

var (
	configFile = flag.String("config", "configs/config.dev.yaml", "Path to the configuration file")
	mode       = flag.String("mode", modeAll, "What to run: all, serve, ingest or migrate")
	seedFile   = flag.String("seed", "", "With -mode=migrate, a JSON array of lots to upsert into the catalog")
)

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
	defer func() {
		_ = logger.Sync()
	}()

	sugar := logger.Sugar()
	sugar.Infow("Configuration loaded successfully",
		"path", *configFile,
		"mode", *mode,
		"timezone", cfg.Analytics.Timezone,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		sugar.Infow("Received signal, initiating shutdown...", "signal", sig.String())
		cancel()
	}()

	runErr := run(ctx, cfg, logger)

	finalLogLevel := zapcore.InfoLevel
	shutdownReason := "gracefully"
	finalErrorField := zap.Skip()
	switch {
	case runErr == nil, errors.Is(runErr, context.Canceled):
	default:
		shutdownReason = "due to error"
		finalLogLevel = zapcore.ErrorLevel
		finalErrorField = zap.Error(runErr)
	}
	logger.Log(finalLogLevel, fmt.Sprintf("ParkingLens shutdown %s.", shutdownReason),
		zap.String("mode", *mode),
		finalErrorField,
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	st := store.New(pool, cfg.Store, cfg.Analytics.Location(), logger.Named("store"))

	switch *mode {
	case modeMigrate:
		return migrate(ctx, st, logger)
	case modeServe:
		return serve(ctx, cfg, st, logger)
	case modeIngest:
		return ingest(ctx, cfg, st, logger)
	case modeAll:
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return serve(gctx, cfg, st, logger) })
		g.Go(func() error { return ingest(gctx, cfg, st, logger) })
		return g.Wait()
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
}

func migrate(ctx context.Context, st *store.Store, logger *zap.Logger) error {
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	if *seedFile == "" {
		return nil
	}

	data, err := os.ReadFile(*seedFile)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var lots []store.Lot
	if err := json.Unmarshal(data, &lots); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	if err := st.UpsertLots(ctx, lots); err != nil {
		return err
	}
	logger.Info("Catalog seeded", zap.Int("lots", len(lots)), zap.String("file", *seedFile))
	return nil
}

func serve(ctx context.Context, cfg *config.Config, st *store.Store, logger *zap.Logger) error {
	readings := cache.New[[]occupancy.Reading](cfg.Cache.ReadingsTTL, dashboard.NewCacheObserver("readings"))
	lots := cache.New[[]store.Lot](cfg.Cache.CatalogTTL, dashboard.NewCacheObserver("catalog"))

	svc := dashboard.New(st, st, readings, lots, dashboard.Options{
		Location:      cfg.Analytics.Location(),
		PeakThreshold: cfg.Analytics.PeakThreshold,
		MaxRangeDays:  cfg.Analytics.MaxRangeDays,
	}, logger.Named("dashboard"))

	server := api.New(svc, cfg.Server, cfg.Analytics, logger.Named("api"))

	go purgeExpired(ctx, logger.Named("cache"), readings.Purge, lots.Purge)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return ctx.Err()
}

func ingest(ctx context.Context, cfg *config.Config, st *store.Store, logger *zap.Logger) error {
	pipe, err := pipeline.New(cfg, st, st, logger)
	if err != nil {
		return err
	}
	return pipe.Run(ctx)
}

// purgeExpired drops expired cache entries so idle keys do not accumulate.
func purgeExpired(ctx context.Context, logger *zap.Logger, purges ...func() int) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed := 0
			for _, purge := range purges {
				removed += purge()
			}
			if removed > 0 {
				logger.Debug("Expired cache entries purged", zap.Int("removed", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}

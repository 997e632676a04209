// Package store is the PostgreSQL-backed catalog and reading history.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/parkinglens/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const breakerTripFailures = 5

// Store runs every query through a circuit breaker with bounded exponential retries.
type Store struct {
	db      DB
	loc     *time.Location
	retry   config.StoreConfig
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// Connect opens a pgx pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return pool, nil
}

// New wraps db. Timestamps read back are converted to loc.
func New(db DB, cfg config.StoreConfig, loc *time.Location, logger *zap.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	s := &Store{
		db:     db,
		loc:    loc,
		retry:  cfg,
		logger: logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "postgres",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTripFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	return s
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.do(ctx, "migrate", func(ctx context.Context) error {
		_, err := s.db.Exec(ctx, schemaSQL)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrateFailed, err)
	}
	s.logger.Info("Schema applied")
	return nil
}

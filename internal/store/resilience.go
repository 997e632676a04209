package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// do runs fn inside the circuit breaker, retrying transient failures with
// exponential backoff. Not-found, cancellation and an open breaker are not retried.
func (s *Store) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		attempt++
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, wrapErr(fn(ctx))
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(fmt.Errorf("%w: %w", ErrCircuitOpen, err))
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrBuildQuery), errors.Is(err, ErrInvalidReading):
			return backoff.Permanent(err)
		case ctx.Err() != nil:
			return backoff.Permanent(ctx.Err())
		}
		s.logger.Debug("Query attempt failed",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(s.newBackOff(), ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrBuildQuery) ||
		errors.Is(err, ErrInvalidReading) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error("Query failed", zap.String("op", op), zap.Int("attempts", attempt), zap.Error(err))
	return fmt.Errorf("%w: %s: %w", ErrQueryFailed, op, err)
}

func (s *Store) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.retry.InitialBackoff
	if s.retry.MaxBackoff > 0 {
		exp.MaxInterval = s.retry.MaxBackoff
	}
	exp.MaxElapsedTime = 0
	retries := s.retry.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(exp, uint64(retries))
}

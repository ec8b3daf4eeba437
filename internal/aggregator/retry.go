package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dmitrymomot/triage/core/logger"
	"github.com/dmitrymomot/triage/internal/session"
)

// transient reports store errors worth another attempt.
func transient(err error) bool {
	return errors.Is(err, session.ErrStorageUnavailable) || errors.Is(err, session.ErrConflict)
}

// withRetry runs op with bounded exponential backoff. Non-transient errors
// return immediately; exhausted retries surface as ErrStorageUnavailable.
func withRetry[T any](ctx context.Context, e *Engine, name string, op func() (T, error)) (T, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.cfg.RetryInitialInterval
	eb.MaxInterval = e.cfg.RetryMaxInterval
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(e.cfg.RetryAttempts-1)), ctx)

	attempt := 0
	result, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy, func(err error, wait time.Duration) {
		e.log.WarnContext(ctx, "store operation failed, retrying",
			logger.Component("aggregator"),
			logger.Action(name),
			logger.RetryCount(attempt),
			slog.Duration("retry_in", wait),
			logger.Error(err),
		)
	})

	switch {
	case err == nil:
		return result, nil
	case transient(err):
		if errors.Is(err, session.ErrStorageUnavailable) {
			return result, fmt.Errorf("%s after %d attempts: %w", name, attempt, err)
		}
		return result, fmt.Errorf("%w: %s after %d attempts: %w", session.ErrStorageUnavailable, name, attempt, err)
	case errors.Is(err, context.DeadlineExceeded):
		return result, fmt.Errorf("%w: %s: %w", session.ErrStorageUnavailable, name, err)
	default:
		return result, err
	}
}

package health

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/triage/core/handler"
	"github.com/dmitrymomot/triage/core/logger"
	"github.com/dmitrymomot/triage/core/response"
)

// Check verifies a single dependency.
type Check func(ctx context.Context) error

// Readiness runs every check in order and answers "READY", or 503 on the first failure.
//
//	r.Get("/health/ready", health.Readiness[*Context](log, store.Ping))
func Readiness[C handler.Context](log *slog.Logger, checks ...Check) handler.HandlerFunc[C] {
	return func(ctx C) handler.Response {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				log.ErrorContext(ctx, "Readiness check failed", logger.Component("health"), logger.Error(err))
				return response.Error(response.ErrServiceUnavailable)
			}
		}
		return response.String("READY")
	}
}

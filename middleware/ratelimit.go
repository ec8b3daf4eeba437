package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/triage/core/handler"
	"github.com/dmitrymomot/triage/core/response"
	"github.com/dmitrymomot/triage/pkg/clientip"
	"github.com/dmitrymomot/triage/pkg/ratelimiter"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimiter.Result, error)
}

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(ctx handler.Context) bool
	// Limiter is required.
	Limiter Limiter
	// KeyExtractor defines the bucket key (default: client IP)
	KeyExtractor func(ctx handler.Context) string
	// ErrorHandler renders a rejected request (default: 429 Too Many Requests)
	ErrorHandler func(ctx handler.Context, result ratelimiter.Result) handler.Response
	// OnLimiterError is called when the limiter itself fails. The request is
	// served anyway.
	OnLimiterError func(ctx handler.Context, err error)
}

// RateLimit limits requests per client IP.
func RateLimit[C handler.Context](limiter Limiter) handler.Middleware[C] {
	return RateLimitWithConfig[C](RateLimitConfig{Limiter: limiter})
}

// RateLimitWithConfig creates a rate limiting middleware. X-RateLimit-*
// headers are set on every limited response. Panics if no limiter is provided.
func RateLimitWithConfig[C handler.Context](cfg RateLimitConfig) handler.Middleware[C] {
	if cfg.Limiter == nil {
		panic("ratelimit middleware: limiter is required")
	}
	if cfg.KeyExtractor == nil {
		cfg.KeyExtractor = func(ctx handler.Context) string {
			return clientip.GetIP(ctx.Request())
		}
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx handler.Context, result ratelimiter.Result) handler.Response {
			return response.Error(response.ErrTooManyRequests.WithDetails(map[string]any{
				"retry_after": retryAfterSeconds(result),
			}))
		}
	}

	return func(next handler.HandlerFunc[C]) handler.HandlerFunc[C] {
		return func(ctx C) handler.Response {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return next(ctx)
			}

			result, err := cfg.Limiter.Allow(ctx.Request().Context(), cfg.KeyExtractor(ctx))
			if err != nil {
				if cfg.OnLimiterError != nil {
					cfg.OnLimiterError(ctx, err)
				}
				return next(ctx)
			}

			if !result.Allowed() {
				return withRateLimitHeaders(cfg.ErrorHandler(ctx, result), result)
			}
			return withRateLimitHeaders(next(ctx), result)
		}
	}
}

func withRateLimitHeaders(resp handler.Response, result ratelimiter.Result) handler.Response {
	return func(w http.ResponseWriter, r *http.Request) error {
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, result.Remaining)))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
		if !result.Allowed() {
			h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(result)))
		}
		return resp(w, r)
	}
}

// retryAfterSeconds rounds up so clients never retry before the refill.
func retryAfterSeconds(result ratelimiter.Result) int {
	d := result.RetryAfter()
	secs := int(d.Seconds())
	if d > 0 && float64(secs) < d.Seconds() {
		secs++
	}
	return max(secs, 1)
}

// Package httpapi exposes the aggregation engine over HTTP: the collector
// ingest endpoint, the operator session API, health probes and a service
// descriptor.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/triage/core/binder"
	"github.com/dmitrymomot/triage/core/handler"
	"github.com/dmitrymomot/triage/core/health"
	"github.com/dmitrymomot/triage/core/logger"
	"github.com/dmitrymomot/triage/core/response"
	"github.com/dmitrymomot/triage/core/router"
	"github.com/dmitrymomot/triage/internal/aggregator"
	"github.com/dmitrymomot/triage/internal/session"
	"github.com/dmitrymomot/triage/middleware"
)

// Service is the engine surface the transport depends on.
type Service interface {
	Submit(ctx context.Context, f aggregator.Fragment) (aggregator.Result, error)
	List(ctx context.Context, limit int) ([]session.Summary, error)
	Get(ctx context.Context, id string) (session.Session, error)
	Delete(ctx context.Context, id string) error
	Rename(ctx context.Context, id, targetName string) (session.Session, error)
	Ping(ctx context.Context) error
}

// Context is the request context used by every route.
type Context = *router.Context

// API builds the HTTP handler for a Service.
type API struct {
	svc      Service
	cfg      Config
	log      *slog.Logger
	operator middleware.TokenVerifier
	ingest   middleware.TokenVerifier
	checks   []health.Check
	limiter  middleware.Limiter
	body     binder.Binder
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the logger for request logs and readiness failures.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// WithOperatorVerifier replaces the static OPERATOR_TOKEN check on the session routes.
func WithOperatorVerifier(v middleware.TokenVerifier) Option {
	return func(a *API) { a.operator = v }
}

// WithRateLimiter limits /api requests per client IP. Limiter failures are
// logged and the request is served.
func WithRateLimiter(l middleware.Limiter) Option {
	return func(a *API) { a.limiter = l }
}

// WithReadinessChecks adds checks to /health/ready after the store ping.
func WithReadinessChecks(checks ...health.Check) Option {
	return func(a *API) { a.checks = append(a.checks, checks...) }
}

// New returns an API serving svc.
func New(svc Service, cfg Config, opts ...Option) *API {
	a := &API{
		svc: svc,
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if v := operatorVerifier(cfg); v != nil {
		a.operator = v
	}
	if cfg.IngestToken != "" {
		a.ingest = middleware.StaticToken{Subject: "collector", Token: cfg.IngestToken}
	}
	for _, opt := range opts {
		opt(a)
	}
	a.body = binder.Body(a.cfg.MaxBodySize)
	return a
}

// Handler registers all routes and returns the root handler.
func (a *API) Handler() http.Handler {
	r := router.New[Context](
		router.WithErrorHandler(response.JSONErrorHandler[Context]),
		router.WithLogger[Context](a.log),
		router.WithMiddleware(
			middleware.RequestID[Context](),
			middleware.LoggingWithLogger[Context](a.log),
		),
	)
	if len(a.cfg.AllowedOrigins) > 0 {
		r.Use(middleware.CORSWithConfig[Context](middleware.CORSConfig{
			AllowOrigins:     a.cfg.AllowedOrigins,
			AllowCredentials: true,
			ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			MaxAge:           600,
		}))
	}

	if a.limiter != nil {
		r.Use(middleware.RateLimitWithConfig[Context](middleware.RateLimitConfig{
			Limiter: a.limiter,
			Skip: func(ctx handler.Context) bool {
				req := ctx.Request()
				return req.Method == http.MethodOptions || !strings.HasPrefix(req.URL.Path, "/api/")
			},
			OnLimiterError: func(ctx handler.Context, err error) {
				a.log.WarnContext(ctx, "rate limiter unavailable, request allowed",
					logger.Component("httpapi"), logger.Error(err))
			},
		}))
	}

	r.Get("/{$}", a.describe(r))
	r.Get("/health/live", health.Liveness[Context])
	r.Get("/health/ready", health.Readiness[Context](a.log, append([]health.Check{a.svc.Ping}, a.checks...)...))

	// Preflight requests are answered by the CORS middleware.
	r.Options("/api/{path...}", func(Context) handler.Response { return response.NoContent() })

	ingest := r
	if a.ingest != nil {
		ingest = r.With(middleware.BearerAuth[Context](a.ingest))
	}
	ingest.Post("/api/data", a.submit)

	r.Group(func(r router.Router[Context]) {
		if a.operator != nil {
			r.Use(middleware.BearerAuth[Context](a.operator))
		} else {
			a.log.Warn("operator routes are not protected, set OPERATOR_TOKEN or OPERATOR_JWT_SECRET", logger.Component("httpapi"))
		}
		r.Get("/api/sessions", a.listSessions)
		r.Get("/api/sessions/{id}", a.getSession)
		r.Patch("/api/sessions/{id}", a.renameSession)
		r.Delete("/api/sessions/{id}", a.deleteSession)
	})

	return r
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/triage/core/config"
	"github.com/dmitrymomot/triage/core/logger"
	"github.com/dmitrymomot/triage/core/server"
	redisdb "github.com/dmitrymomot/triage/integration/database/redis"
	"github.com/dmitrymomot/triage/internal/aggregator"
	"github.com/dmitrymomot/triage/internal/httpapi"
	"github.com/dmitrymomot/triage/pkg/ratelimiter"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingest and operator API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	var (
		srvCfg server.Config
		apiCfg httpapi.Config
		aggCfg aggregator.Config
		rlCfg  ratelimiter.Config
	)
	if err := config.Load(&srvCfg); err != nil {
		return err
	}
	if err := config.Load(&apiCfg); err != nil {
		return err
	}
	if err := config.Load(&aggCfg); err != nil {
		return err
	}
	if err := config.Load(&rlCfg); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx, a.cfg, a.log)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := aggregator.New(store,
		aggregator.WithConfig(aggCfg),
		aggregator.WithLogger(a.log),
	)
	g, ctx := errgroup.WithContext(ctx)

	apiOpts := []httpapi.Option{httpapi.WithLogger(a.log)}
	if rlCfg.Enabled() {
		limiter, closeLimiter, err := a.openLimiter(ctx, g, rlCfg)
		if err != nil {
			return err
		}
		defer closeLimiter()
		apiOpts = append(apiOpts, httpapi.WithRateLimiter(limiter))
	}
	api := httpapi.New(engine, apiCfg, apiOpts...)

	srv, err := server.NewFromConfig(srvCfg, server.WithLogger(a.log))
	if err != nil {
		return err
	}

	a.log.InfoContext(ctx, "service starting",
		logger.Component("cmd"),
		logger.Driver(a.cfg.StoreDriver),
		slog.String("addr", srvCfg.Addr),
		slog.String("version", version),
	)

	g.Go(srv.Run(ctx, api.Handler()))
	return g.Wait()
}

// openLimiter builds the per-client limiter. The memory backend registers its
// cleanup loop on g.
func (a *app) openLimiter(ctx context.Context, g *errgroup.Group, cfg ratelimiter.Config) (*ratelimiter.Bucket, func(), error) {
	log := a.log.With(logger.Component("ratelimit"), logger.Driver(a.cfg.RateLimitBackend))

	var (
		store   ratelimiter.Store
		cleanup func() error
		closeFn = func() {}
	)
	switch a.cfg.RateLimitBackend {
	case driverMemory:
		ms := ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreLogger(log))
		cleanup = ms.Run(ctx)
		store = ms
	case driverRedis:
		var rcfg redisdb.Config
		if err := config.Load(&rcfg); err != nil {
			return nil, nil, err
		}
		client, err := redisdb.Connect(ctx, rcfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() { _ = client.Close() }
		store = ratelimiter.NewRedisStore(client, ratelimiter.WithKeyPrefix(a.cfg.RedisKeyPrefix+":ratelimit"))
	default:
		return nil, nil, fmt.Errorf("%w: rate limit backend %q (want memory or redis)", errUnknownDriver, a.cfg.RateLimitBackend)
	}

	limiter, err := ratelimiter.NewBucket(store, cfg)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if cleanup != nil {
		g.Go(cleanup)
	}
	log.InfoContext(ctx, "rate limiting enabled",
		slog.Int("capacity", cfg.Capacity),
		slog.Int("refill_rate", cfg.RefillRate),
		slog.Duration("refill_interval", cfg.RefillInterval),
	)
	return limiter, closeFn, nil
}

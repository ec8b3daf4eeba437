package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/triage/core/config"
	"github.com/dmitrymomot/triage/core/logger"
	mongodb "github.com/dmitrymomot/triage/integration/database/mongo"
	"github.com/dmitrymomot/triage/integration/database/pg"
	redisdb "github.com/dmitrymomot/triage/integration/database/redis"
	"github.com/dmitrymomot/triage/internal/aggregator"
	"github.com/dmitrymomot/triage/internal/store/memory"
	mongostore "github.com/dmitrymomot/triage/internal/store/mongo"
	pgstore "github.com/dmitrymomot/triage/internal/store/postgres"
	redisstore "github.com/dmitrymomot/triage/internal/store/redis"
)

const (
	driverMemory   = "memory"
	driverMongo    = "mongo"
	driverRedis    = "redis"
	driverPostgres = "postgres"
)

var errUnknownDriver = errors.New("unknown store driver")

// storeOpener connects the configured backend and returns a close func.
type storeOpener func(ctx context.Context, cfg appConfig, log *slog.Logger) (aggregator.Store, func(), error)

func defaultStoreOpener(ctx context.Context, cfg appConfig, log *slog.Logger) (aggregator.Store, func(), error) {
	log = log.With(logger.Driver(cfg.StoreDriver))

	switch cfg.StoreDriver {
	case driverMemory:
		log.Warn("using in-memory store, sessions are lost on restart", logger.Component("store"))
		return memory.New(), func() {}, nil

	case driverMongo:
		var mcfg mongodb.Config
		if err := config.Load(&mcfg); err != nil {
			return nil, nil, err
		}
		db, err := mongodb.NewWithDatabase(ctx, mcfg, "")
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = db.Client().Disconnect(context.Background()) }
		s, err := mongostore.New(ctx, db, mongostore.WithCollection(cfg.MongoCollection))
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("connected", logger.Component("store"), slog.String("database", mcfg.Database))
		return s, closeFn, nil

	case driverRedis:
		var rcfg redisdb.Config
		if err := config.Load(&rcfg); err != nil {
			return nil, nil, err
		}
		client, err := redisdb.Connect(ctx, rcfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { _ = client.Close() }
		s, err := redisstore.New(redisstore.Config{Client: client, KeyPrefix: cfg.RedisKeyPrefix})
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		log.Info("connected", logger.Component("store"))
		return s, closeFn, nil

	case driverPostgres:
		var pcfg pg.Config
		if err := config.Load(&pcfg); err != nil {
			return nil, nil, err
		}
		pool, err := pg.Connect(ctx, pcfg)
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, pool, pgstore.Migrations(), pcfg, log); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		log.Info("connected", logger.Component("store"))
		return pgstore.New(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q (want memory, mongo, redis or postgres)", errUnknownDriver, cfg.StoreDriver)
	}
}

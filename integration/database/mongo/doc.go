// Package mongo connects to MongoDB with retry and health checking.
//
// New pings the primary with exponential backoff so a cold Atlas cluster or a
// brief network outage does not fail service startup:
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	client, err := mongo.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Disconnect(ctx)
//
//	db := client.Database(cfg.Database)
//
// Environment variables:
//
//	MONGODB_URL                 (required)
//	MONGODB_DATABASE            (default: triage)
//	MONGODB_CONNECT_TIMEOUT     (default: 10s)
//	MONGODB_MAX_POOL_SIZE       (default: 100)
//	MONGODB_MIN_POOL_SIZE       (default: 1)
//	MONGODB_MAX_CONN_IDLE_TIME  (default: 300s)
//	MONGODB_RETRY_WRITES        (default: true)
//	MONGODB_RETRY_READS         (default: true)
//	MONGODB_RETRY_ATTEMPTS      (default: 3)
//	MONGODB_RETRY_INTERVAL      (default: 5s)
//
// Healthcheck returns a func(context.Context) error suitable for readiness probes.
package mongo

// Package ratelimiter implements a token bucket limiter over pluggable storage.
//
// A bucket holds up to Capacity tokens and gains RefillRate tokens every
// RefillInterval. Each request consumes one token; a request that finds too
// few tokens is rejected without consuming any.
//
//	store := ratelimiter.NewMemoryStore()
//	g.Go(store.Run(ctx)) // stale bucket cleanup
//
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       120,
//		RefillRate:     60,
//		RefillInterval: time.Minute,
//	})
//
//	res, err := limiter.Allow(ctx, clientip.GetIP(r))
//	if err == nil && !res.Allowed() {
//		// 429, Retry-After: res.RetryAfter()
//	}
//
// MemoryStore serves a single instance. RedisStore shares buckets between
// instances through an atomic Lua script.
package ratelimiter

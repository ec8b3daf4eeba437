package ratelimiter_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisdb "github.com/dmitrymomot/triage/integration/database/redis"
	"github.com/dmitrymomot/triage/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Now().Truncate(time.Millisecond)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testConfig = ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Minute}

func TestNewBucketValidation(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore()
	tests := []struct {
		name string
		cfg  ratelimiter.Config
	}{
		{"zero capacity", ratelimiter.Config{RefillRate: 1, RefillInterval: time.Second}},
		{"zero rate", ratelimiter.Config{Capacity: 1, RefillInterval: time.Second}},
		{"zero interval", ratelimiter.Config{Capacity: 1, RefillRate: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ratelimiter.NewBucket(store, tt.cfg)
			assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
		})
	}

	_, err := ratelimiter.NewBucket(nil, testConfig)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
}

func TestConfigEnabled(t *testing.T) {
	t.Parallel()

	assert.False(t, ratelimiter.Config{}.Enabled())
	assert.True(t, testConfig.Enabled())
}

func TestResult(t *testing.T) {
	t.Parallel()

	ok := ratelimiter.Result{Limit: 1, Remaining: 0, ResetAt: time.Now().Add(time.Minute)}
	assert.True(t, ok.Allowed())
	assert.Zero(t, ok.RetryAfter())

	denied := ratelimiter.Result{Limit: 1, Remaining: -1, ResetAt: time.Now().Add(time.Minute)}
	assert.False(t, denied.Allowed())
	assert.InDelta(t, time.Minute, denied.RetryAfter(), float64(time.Second))

	past := ratelimiter.Result{Limit: 1, Remaining: -1, ResetAt: time.Now().Add(-time.Minute)}
	assert.Zero(t, past.RetryAfter())
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	runStoreTests(t, func(t *testing.T, c *clock) ratelimiter.Store {
		return ratelimiter.NewMemoryStore(ratelimiter.WithMemoryStoreClock(c.Now))
	})
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	client, err := redisdb.Connect(context.Background(), redisdb.Config{
		ConnectionURL:  url,
		RetryAttempts:  3,
		RetryInterval:  time.Second,
		ConnectTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	runStoreTests(t, func(t *testing.T, c *clock) ratelimiter.Store {
		return ratelimiter.NewRedisStore(client,
			ratelimiter.WithKeyPrefix("ratelimit_test:"+uuid.NewString()),
			ratelimiter.WithRedisStoreClock(c.Now),
		)
	})
}

func runStoreTests(t *testing.T, factory func(*testing.T, *clock) ratelimiter.Store) {
	t.Helper()

	t.Run("drains and refills", func(t *testing.T) {
		c := newClock()
		b, err := ratelimiter.NewBucket(factory(t, c), testConfig)
		require.NoError(t, err)
		ctx := context.Background()

		for want := 2; want >= 0; want-- {
			res, err := b.Allow(ctx, "client")
			require.NoError(t, err)
			assert.True(t, res.Allowed())
			assert.Equal(t, want, res.Remaining)
			assert.Equal(t, 3, res.Limit)
		}

		res, err := b.Allow(ctx, "client")
		require.NoError(t, err)
		assert.False(t, res.Allowed())
		assert.Equal(t, c.Now().Add(time.Minute).UnixMilli(), res.ResetAt.UnixMilli())

		c.Advance(time.Minute)
		res, err = b.Allow(ctx, "client")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 0, res.Remaining)

		c.Advance(10 * time.Minute)
		res, err = b.Allow(ctx, "client")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining, "refill is capped at capacity")
	})

	t.Run("rejected request keeps tokens", func(t *testing.T) {
		c := newClock()
		b, err := ratelimiter.NewBucket(factory(t, c), testConfig)
		require.NoError(t, err)
		ctx := context.Background()

		_, err = b.Allow(ctx, "client")
		require.NoError(t, err)

		res, err := b.AllowN(ctx, "client", 3)
		require.NoError(t, err)
		assert.False(t, res.Allowed())
		assert.Equal(t, -1, res.Remaining)

		res, err = b.AllowN(ctx, "client", 2)
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, 0, res.Remaining)
	})

	t.Run("keys are independent", func(t *testing.T) {
		c := newClock()
		b, err := ratelimiter.NewBucket(factory(t, c), testConfig)
		require.NoError(t, err)
		ctx := context.Background()

		_, err = b.AllowN(ctx, "a", 3)
		require.NoError(t, err)

		res, err := b.Allow(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
	})

	t.Run("reset restores capacity", func(t *testing.T) {
		c := newClock()
		b, err := ratelimiter.NewBucket(factory(t, c), testConfig)
		require.NoError(t, err)
		ctx := context.Background()

		_, err = b.AllowN(ctx, "client", 3)
		require.NoError(t, err)
		require.NoError(t, b.Reset(ctx, "client"))

		res, err := b.Allow(ctx, "client")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Remaining)
	})

	t.Run("invalid token count", func(t *testing.T) {
		b, err := ratelimiter.NewBucket(factory(t, newClock()), testConfig)
		require.NoError(t, err)

		_, err = b.AllowN(context.Background(), "client", 0)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
		_, err = b.AllowN(context.Background(), "client", 4)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
	})
}

func TestMemoryStoreConcurrentAllow(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore()
	b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 50, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.Allow(context.Background(), "shared")
			if err == nil && res.Allowed() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func TestMemoryStoreRunRemovesStaleBuckets(t *testing.T) {
	t.Parallel()

	c := newClock()
	store := ratelimiter.NewMemoryStore(
		ratelimiter.WithMemoryStoreClock(c.Now),
		ratelimiter.WithCleanupInterval(10*time.Millisecond),
		ratelimiter.WithStaleAfter(time.Minute),
	)
	b, err := ratelimiter.NewBucket(store, testConfig)
	require.NoError(t, err)

	_, err = b.Allow(context.Background(), "idle")
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx)() }()

	c.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// Package storetest is the conformance suite every aggregator.Store backend runs.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/triage/internal/aggregator"
	"github.com/dmitrymomot/triage/internal/category"
	"github.com/dmitrymomot/triage/internal/session"
)

// Factory returns an empty, isolated store. Cleanup belongs in t.Cleanup.
type Factory func(t *testing.T) aggregator.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s aggregator.Store)
	}{
		{"FindOrInitCreatesOnce", testFindOrInitCreatesOnce},
		{"FindOrInitConcurrent", testFindOrInitConcurrent},
		{"ReplaceIsIdempotent", testReplaceIsIdempotent},
		{"DeepMergeAccumulates", testDeepMergeAccumulates},
		{"DeviceInfoMergesPerKey", testDeviceInfoMergesPerKey},
		{"CompletionThreshold", testCompletionThreshold},
		{"NoOpTouchesUpdatedAt", testNoOpTouchesUpdatedAt},
		{"EmptyPayloadIsNotCollected", testEmptyPayloadIsNotCollected},
		{"ConcurrentCategoriesAreKept", testConcurrentCategoriesAreKept},
		{"ApplyUpdateRecreatesDeleted", testApplyUpdateRecreatesDeleted},
		{"GetMissing", testGetMissing},
		{"Delete", testDelete},
		{"Rename", testRename},
		{"ListNewestFirst", testListNewestFirst},
		{"PayloadRoundTrip", testPayloadRoundTrip},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newID() string { return "sess-" + uuid.NewString() }

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func mutation(cat string, payload any) session.Mutation {
	strategy, _ := category.Lookup(cat)
	return session.Mutation{Category: cat, Strategy: strategy, Payload: payload, At: now()}
}

func apply(t *testing.T, s aggregator.Store, id string, m session.Mutation) session.Session {
	t.Helper()
	got, err := s.ApplyUpdate(context.Background(), id, m)
	require.NoError(t, err)
	return got
}

func testFindOrInitCreatesOnce(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()

	first, created, err := s.FindOrInit(ctx, id, map[string]string{"hostname": "WS-01"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, id, first.ID)
	assert.Equal(t, session.StatusPartial, first.Status)
	assert.Equal(t, "WS-01", first.DeviceInfo["hostname"])
	assert.Empty(t, first.CollectedCategories)
	assert.False(t, first.CreatedAt.IsZero())

	second, created, err := s.FindOrInit(ctx, id, map[string]string{"hostname": "other"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "WS-01", second.DeviceInfo["hostname"], "seed applies only on creation")
	assert.WithinDuration(t, first.CreatedAt, second.CreatedAt, time.Millisecond)
}

func testFindOrInitConcurrent(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()

	const workers = 16
	var (
		mu      sync.Mutex
		created int
	)
	var eg errgroup.Group
	for range workers {
		eg.Go(func() error {
			var c bool
			err := retryConflicts(func() error {
				var err error
				_, c, err = s.FindOrInit(ctx, id, nil)
				return err
			})
			if c {
				mu.Lock()
				created++
				mu.Unlock()
			}
			return err
		})
	}
	require.NoError(t, eg.Wait())
	assert.Equal(t, 1, created, "exactly one caller creates the session")

	list, err := s.List(ctx, 1000)
	require.NoError(t, err)
	count := 0
	for _, sum := range list {
		if sum.ID == id {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func testReplaceIsIdempotent(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, nil)
	require.NoError(t, err)

	payload := []any{map[string]any{"network": "Home", "password": "x"}}
	once := apply(t, s, id, mutation("wifi", payload))
	twice := apply(t, s, id, mutation("wifi", payload))

	assert.Equal(t, once.CategoryData["wifi"], twice.CategoryData["wifi"])
	assert.Equal(t, []string{"wifi"}, twice.CollectedCategories)
	assert.Equal(t, session.StatusPartial, twice.Status)

	stored, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"network": "Home", "password": "x"}}, stored.CategoryData["wifi"])
}

func testDeepMergeAccumulates(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, nil)
	require.NoError(t, err)

	apply(t, s, id, mutation("bookmarks", map[string]any{"chrome": []any{"https://a.example"}}))
	apply(t, s, id, mutation("bookmarks", map[string]any{"brave": []any{"https://b.example"}}))
	got := apply(t, s, id, mutation("bookmarks", map[string]any{"chrome": []any{"https://c.example"}}))

	bm, ok := got.CategoryData["bookmarks"].(map[string]any)
	require.True(t, ok, "bookmarks must be a map, got %T", got.CategoryData["bookmarks"])
	assert.Equal(t, []any{"https://c.example"}, bm["chrome"])
	assert.Equal(t, []any{"https://b.example"}, bm["brave"])
	assert.Equal(t, []string{"bookmarks"}, got.CollectedCategories)
}

func testDeviceInfoMergesPerKey(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, map[string]string{"hostname": "WS-01", "username": "bob"})
	require.NoError(t, err)

	got := apply(t, s, id, session.Mutation{
		DeviceInfo: map[string]string{"username": "alice", "ip_address": "10.0.0.5"},
		At:         now(),
	})
	assert.Equal(t, map[string]string{
		"hostname":   "WS-01",
		"username":   "alice",
		"ip_address": "10.0.0.5",
	}, got.DeviceInfo)
}

func testCompletionThreshold(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, nil)
	require.NoError(t, err)

	var got session.Session
	for _, c := range []string{"chrome", "brave", "edge", "wifi"} {
		got = apply(t, s, id, mutation(c, []any{"x"}))
	}
	assert.Equal(t, session.StatusPartial, got.Status)

	for i := range 6 {
		got = apply(t, s, id, mutation(fmt.Sprintf("future_%d", i), "x"))
	}
	assert.Equal(t, session.StatusPartial, got.Status, "unknown categories never complete a session")
	assert.Len(t, got.CollectedCategories, 10)

	got = apply(t, s, id, mutation("cookies", []any{}))
	assert.Equal(t, session.StatusComplete, got.Status)

	apply(t, s, id, mutation("chrome", []any{"y"}))
	got = apply(t, s, id, session.Mutation{At: now()})
	assert.Equal(t, session.StatusComplete, got.Status, "complete is a one-way latch")
}

func testNoOpTouchesUpdatedAt(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, nil)
	require.NoError(t, err)
	before := apply(t, s, id, mutation("system", map[string]any{"os": "Windows 11"}))

	later := before.UpdatedAt.Add(time.Second)
	after := apply(t, s, id, session.Mutation{At: later})

	assert.WithinDuration(t, later, after.UpdatedAt, time.Millisecond)
	assert.Equal(t, before.CollectedCategories, after.CollectedCategories)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.CategoryData, after.CategoryData)
}

func testEmptyPayloadIsNotCollected(t *testing.T, s aggregator.Store) {
	id := newID()
	for _, payload := range []any{"", false, float64(0)} {
		got := apply(t, s, id, mutation("wifi", payload))
		assert.Empty(t, got.CollectedCategories)
	}

	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, got.CollectedCategories)
	assert.NotContains(t, got.CategoryData, "wifi")
	assert.Equal(t, 0, got.CategoryCount())
}

func testConcurrentCategoriesAreKept(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()

	engine := aggregator.New(s, aggregator.WithConfig(aggregator.Config{
		RetryAttempts:        100,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     20 * time.Millisecond,
	}))

	var eg errgroup.Group
	for _, c := range category.Known() {
		eg.Go(func() error {
			_, err := engine.Submit(ctx, aggregator.Fragment{SessionID: id, Category: c, Payload: []any{c}})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, category.Known(), got.CollectedCategories)
	assert.Equal(t, session.StatusComplete, got.Status)
	for _, c := range category.Known() {
		assert.Equal(t, []any{c}, got.CategoryData[c], "category %s lost", c)
	}
}

func testApplyUpdateRecreatesDeleted(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, nil)
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, deleted)

	got := apply(t, s, id, mutation("wifi", []any{"late"}))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []string{"wifi"}, got.CollectedCategories)
	assert.Equal(t, session.StatusPartial, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.Get(ctx, id)
	require.NoError(t, err)
}

func testGetMissing(t *testing.T, s aggregator.Store) {
	_, err := s.Get(context.Background(), newID())
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func testDelete(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, nil)
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func testRename(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, map[string]string{"hostname": "WS-01"})
	require.NoError(t, err)
	before := apply(t, s, id, mutation("wifi", []any{"x"}))

	renamed, err := s.Rename(ctx, id, "finance laptop")
	require.NoError(t, err)
	assert.Equal(t, "finance laptop", renamed.TargetName)
	assert.Equal(t, before.CollectedCategories, renamed.CollectedCategories)
	assert.Equal(t, before.Status, renamed.Status)
	assert.Equal(t, before.DeviceInfo, renamed.DeviceInfo)
	assert.Equal(t, before.CategoryData, renamed.CategoryData)

	// Ingestion never touches the label.
	after := apply(t, s, id, mutation("chrome", []any{"y"}))
	assert.Equal(t, "finance laptop", after.TargetName)

	_, err = s.Rename(ctx, newID(), "nobody")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func testListNewestFirst(t *testing.T, s aggregator.Store) {
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = newID()
		_, _, err := s.FindOrInit(ctx, ids[i], map[string]string{"hostname": fmt.Sprintf("host-%d", i)})
		require.NoError(t, err)
		apply(t, s, ids[i], mutation("wifi", []any{"x"}))
		time.Sleep(5 * time.Millisecond)
	}

	list, err := s.List(ctx, 1000)
	require.NoError(t, err)

	var ours []string
	for _, sum := range list {
		for _, id := range ids {
			if sum.ID == id {
				ours = append(ours, id)
				assert.Equal(t, 1, sum.CategoryCount)
				assert.Equal(t, []string{"wifi"}, sum.CollectedCategories)
				assert.NotEmpty(t, sum.DeviceInfo["hostname"])
			}
		}
	}
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, ours)

	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt), "list must be sorted by created_at desc")
		if list[i].CreatedAt.Equal(list[i-1].CreatedAt) {
			assert.Less(t, list[i-1].ID, list[i].ID, "equal created_at must order by session_id")
		}
	}

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func testPayloadRoundTrip(t *testing.T, s aggregator.Store) {
	ctx := context.Background()
	id := newID()
	_, _, err := s.FindOrInit(ctx, id, nil)
	require.NoError(t, err)

	payload := map[string]any{
		"os":       "Windows 11",
		"cpu":      map[string]any{"cores": float64(8), "model": "x86"},
		"disks":    []any{map[string]any{"name": "C:", "free": 12.5}},
		"elevated": true,
		"note":     nil,
	}
	apply(t, s, id, mutation("system", payload))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payload, got.CategoryData["system"])
}

func testPing(t *testing.T, s aggregator.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}

func retryConflicts(fn func() error) error {
	var err error
	for range 50 {
		if err = fn(); err == nil {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return err
}

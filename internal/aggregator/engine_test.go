package aggregator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/triage/internal/aggregator"
	"github.com/dmitrymomot/triage/internal/session"
	"github.com/dmitrymomot/triage/internal/store/memory"
)

// mockStore implements aggregator.Store for failure-path tests.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindOrInit(ctx context.Context, id string, di map[string]string) (session.Session, bool, error) {
	args := m.Called(ctx, id, di)
	return args.Get(0).(session.Session), args.Bool(1), args.Error(2)
}

func (m *mockStore) ApplyUpdate(ctx context.Context, id string, mut session.Mutation) (session.Session, error) {
	args := m.Called(ctx, id, mut)
	return args.Get(0).(session.Session), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, limit int) ([]session.Summary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]session.Summary), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (session.Session, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(session.Session), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Rename(ctx context.Context, id, name string) (session.Session, error) {
	args := m.Called(ctx, id, name)
	return args.Get(0).(session.Session), args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func fastRetry(attempts int) aggregator.Option {
	return aggregator.WithConfig(aggregator.Config{
		RetryAttempts:        attempts,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
	})
}

func submit(t *testing.T, e *aggregator.Engine, f aggregator.Fragment) aggregator.Result {
	t.Helper()
	res, err := e.Submit(context.Background(), f)
	require.NoError(t, err)
	return res
}

func TestSubmitScenarioSingleCategory(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())
	res := submit(t, e, aggregator.Fragment{
		SessionID: "S1",
		Category:  "wifi",
		Payload:   []any{map[string]any{"network": "Home", "password": "x"}},
	})

	assert.Equal(t, aggregator.Result{SessionID: "S1", CategoryCount: 1, Status: session.StatusPartial, Created: true}, res)

	got, err := e.Get(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusPartial, got.Status)
	assert.Equal(t, []string{"wifi"}, got.CollectedCategories)
	assert.Len(t, got.CategoryData["wifi"], 1)
}

func TestSubmitScenarioCompletion(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())
	for i, c := range []string{"recent_files", "system", "cookies", "edge"} {
		res := submit(t, e, aggregator.Fragment{SessionID: "S2", Category: c, Payload: []any{c}})
		assert.Equal(t, session.StatusPartial, res.Status)
		assert.Equal(t, i+1, res.CategoryCount)
	}

	res := submit(t, e, aggregator.Fragment{SessionID: "S2", Category: "bookmarks", Payload: map[string]any{"chrome": []any{}}})
	assert.Equal(t, session.StatusComplete, res.Status)
	assert.Equal(t, 5, res.CategoryCount)

	got, err := e.Get(context.Background(), "S2")
	require.NoError(t, err)
	assert.Equal(t, session.StatusComplete, got.Status)
}

func TestSubmitIdempotentReplay(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())
	f := aggregator.Fragment{SessionID: "S1", Category: "chrome", Payload: []any{map[string]any{"url": "https://example.com"}}}

	first := submit(t, e, f)
	second := submit(t, e, f)
	assert.False(t, second.Created)
	assert.Equal(t, first.CategoryCount, second.CategoryCount)

	got, err := e.Get(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"chrome"}, got.CollectedCategories)
	assert.Equal(t, f.Payload, got.CategoryData["chrome"])
}

func TestSubmitUnknownCategoriesNeverComplete(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())
	for i := range 12 {
		res := submit(t, e, aggregator.Fragment{SessionID: "S3", Category: fmt.Sprintf("new_feature_%d", i), Payload: "x"})
		assert.Equal(t, session.StatusPartial, res.Status)
	}

	got, err := e.Get(context.Background(), "S3")
	require.NoError(t, err)
	assert.Len(t, got.CollectedCategories, 12)
	assert.Equal(t, "x", got.CategoryData["new_feature_0"])
}

func TestSubmitDeviceInfo(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())
	ctx := context.Background()

	submit(t, e, aggregator.Fragment{
		SessionID:  "S1",
		DeviceInfo: map[string]string{"hostname": "WS-01", "username": "bob"},
	})
	submit(t, e, aggregator.Fragment{
		SessionID:  "S1",
		DeviceInfo: map[string]string{"username": "alice"},
	})
	submit(t, e, aggregator.Fragment{
		SessionID: "S1",
		Category:  "device_info",
		Payload:   map[string]any{"ip_address": "10.0.0.5", "cores": float64(8)},
	})

	got, err := e.Get(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"hostname":   "WS-01",
		"username":   "alice",
		"ip_address": "10.0.0.5",
		"cores":      "8",
	}, got.DeviceInfo)
	assert.Empty(t, got.CollectedCategories, "device_info is not a category")
}

func TestSubmitDeviceInfoNonObjectIsNotACategory(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())

	for _, payload := range []any{[]any{"x"}, "laptop", float64(3)} {
		res := submit(t, e, aggregator.Fragment{SessionID: "D", Category: "device_info", Payload: payload})
		assert.Equal(t, 0, res.CategoryCount)
	}

	got, err := e.Get(context.Background(), "D")
	require.NoError(t, err)
	assert.Empty(t, got.CollectedCategories)
	assert.NotContains(t, got.CategoryData, "device_info")
	assert.Empty(t, got.DeviceInfo)
	assert.Equal(t, session.StatusPartial, got.Status)
}

func TestSubmitFalsyPayloadIsNotCollected(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())

	for _, payload := range []any{"", false, float64(0), nil} {
		res := submit(t, e, aggregator.Fragment{SessionID: "E", Category: "wifi", Payload: payload})
		assert.Equal(t, 0, res.CategoryCount, "payload %#v", payload)
	}

	got, err := e.Get(context.Background(), "E")
	require.NoError(t, err)
	assert.Empty(t, got.CollectedCategories)
	assert.NotContains(t, got.CategoryData, "wifi")

	res := submit(t, e, aggregator.Fragment{SessionID: "E", Category: "wifi", Payload: []any{}})
	assert.Equal(t, 1, res.CategoryCount, "an empty list is a completed scan")
}

func TestSubmitNoOpFragment(t *testing.T) {
	t.Parallel()

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	e := aggregator.New(memory.New(), aggregator.WithClock(func() time.Time { return clock }))

	submit(t, e, aggregator.Fragment{SessionID: "S1", Category: "wifi", Payload: []any{}})
	before, err := e.Get(context.Background(), "S1")
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	res := submit(t, e, aggregator.Fragment{SessionID: "S1"})
	assert.Equal(t, 1, res.CategoryCount)

	after, err := e.Get(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, clock, after.UpdatedAt)
	assert.Equal(t, before.CollectedCategories, after.CollectedCategories)
	assert.Equal(t, before.Status, after.Status)
}

func TestSubmitMalformed(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	e := aggregator.New(store)

	tests := []aggregator.Fragment{
		{Category: "wifi", Payload: []any{}},
		{SessionID: "S1", Category: "bad.name", Payload: 1},
		{SessionID: "S1", Category: "$set", Payload: 1},
	}
	for _, f := range tests {
		_, err := e.Submit(context.Background(), f)
		assert.ErrorIs(t, err, session.ErrMalformedRequest)
	}
	store.AssertNotCalled(t, "FindOrInit", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitConcurrentCategories(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())
	cats := []string{"chrome", "brave", "edge", "wifi", "system", "bookmarks", "cookies", "recent_files"}

	var eg errgroup.Group
	for _, c := range cats {
		eg.Go(func() error {
			_, err := e.Submit(context.Background(), aggregator.Fragment{SessionID: "S1", Category: c, Payload: []any{c}})
			return err
		})
	}
	require.NoError(t, eg.Wait())

	got, err := e.Get(context.Background(), "S1")
	require.NoError(t, err)
	assert.ElementsMatch(t, cats, got.CollectedCategories)
	assert.Equal(t, session.StatusComplete, got.Status)
}

func TestSubmitRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	e := aggregator.New(store, fastRetry(3))
	ctx := context.Background()

	s := session.New("S1", nil, time.Now())
	store.On("FindOrInit", ctx, "S1", map[string]string(nil)).
		Return(session.Session{}, false, fmt.Errorf("timeout: %w", session.ErrStorageUnavailable)).Once()
	store.On("FindOrInit", ctx, "S1", map[string]string(nil)).Return(s, true, nil).Once()

	updated := s.Clone()
	updated.CollectedCategories = []string{"wifi"}
	store.On("ApplyUpdate", ctx, "S1", mock.AnythingOfType("session.Mutation")).
		Return(session.Session{}, session.ErrConflict).Once()
	store.On("ApplyUpdate", ctx, "S1", mock.AnythingOfType("session.Mutation")).Return(updated, nil).Once()

	res, err := e.Submit(ctx, aggregator.Fragment{SessionID: "S1", Category: "wifi", Payload: []any{}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CategoryCount)
	store.AssertExpectations(t)
}

func TestSubmitSurfacesStorageUnavailable(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	e := aggregator.New(store, fastRetry(3))
	ctx := context.Background()

	store.On("FindOrInit", ctx, "S1", map[string]string(nil)).Return(session.New("S1", nil, time.Now()), false, nil)
	store.On("ApplyUpdate", ctx, "S1", mock.Anything).Return(session.Session{}, session.ErrConflict)

	_, err := e.Submit(ctx, aggregator.Fragment{SessionID: "S1", Category: "wifi", Payload: []any{}})
	require.ErrorIs(t, err, session.ErrStorageUnavailable)
	store.AssertNumberOfCalls(t, "ApplyUpdate", 3)
}

func TestSubmitDoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	e := aggregator.New(store, fastRetry(5))
	ctx := context.Background()
	errBroken := errors.New("document too large")

	store.On("FindOrInit", ctx, "S1", map[string]string(nil)).Return(session.New("S1", nil, time.Now()), false, nil)
	store.On("ApplyUpdate", ctx, "S1", mock.Anything).Return(session.Session{}, errBroken)

	_, err := e.Submit(ctx, aggregator.Fragment{SessionID: "S1", Category: "wifi", Payload: []any{}})
	require.ErrorIs(t, err, errBroken)
	assert.NotErrorIs(t, err, session.ErrStorageUnavailable)
	store.AssertNumberOfCalls(t, "ApplyUpdate", 1)
}

func TestListLimits(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	e := aggregator.New(store)
	ctx := context.Background()

	store.On("List", ctx, 100).Return([]session.Summary{}, nil).Twice()
	store.On("List", ctx, 500).Return([]session.Summary{}, nil).Once()
	store.On("List", ctx, 7).Return([]session.Summary{{ID: "S1"}}, nil).Once()

	for _, limit := range []int{0, -3} {
		_, err := e.List(ctx, limit)
		require.NoError(t, err)
	}
	_, err := e.List(ctx, 10_000)
	require.NoError(t, err)

	got, err := e.List(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []session.Summary{{ID: "S1"}}, got)
	store.AssertExpectations(t)
}

func TestDeleteAndRecreate(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())
	ctx := context.Background()

	submit(t, e, aggregator.Fragment{SessionID: "S1", Category: "wifi", Payload: []any{}})
	require.NoError(t, e.Delete(ctx, "S1"))

	_, err := e.Get(ctx, "S1")
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.ErrorIs(t, e.Delete(ctx, "S1"), session.ErrNotFound)

	// A late fragment resurrects the session.
	res := submit(t, e, aggregator.Fragment{SessionID: "S1", Category: "chrome", Payload: []any{}})
	assert.True(t, res.Created)
	assert.Equal(t, 1, res.CategoryCount)
}

func TestRename(t *testing.T) {
	t.Parallel()

	e := aggregator.New(memory.New())
	ctx := context.Background()

	submit(t, e, aggregator.Fragment{SessionID: "S1", Category: "wifi", Payload: []any{}})

	got, err := e.Rename(ctx, "S1", "  finance laptop ")
	require.NoError(t, err)
	assert.Equal(t, "finance laptop", got.TargetName)
	assert.Equal(t, []string{"wifi"}, got.CollectedCategories)

	got, err = e.Rename(ctx, "S1", "finance\x1b\nlaptop\t2")
	require.NoError(t, err)
	assert.Equal(t, "finance laptop 2", got.TargetName)

	_, err = e.Rename(ctx, "missing", "x")
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = e.Rename(ctx, "", "x")
	assert.ErrorIs(t, err, session.ErrMalformedRequest)

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	_, err = e.Rename(ctx, "S1", string(long))
	assert.ErrorIs(t, err, session.ErrMalformedRequest)
}

func TestStringify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", aggregator.Stringify(nil))
	assert.Equal(t, "abc", aggregator.Stringify("abc"))
	assert.Equal(t, "8", aggregator.Stringify(float64(8)))
	assert.Equal(t, "1.5", aggregator.Stringify(1.5))
	assert.Equal(t, "true", aggregator.Stringify(true))
	assert.Equal(t, `{"a":1}`, aggregator.Stringify(map[string]any{"a": float64(1)}))
	assert.Equal(t, `["eth0","wlan0"]`, aggregator.Stringify([]any{"eth0", "wlan0"}))
}

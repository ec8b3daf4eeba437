package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/triage/internal/category"
	"github.com/dmitrymomot/triage/internal/session"
)

var (
	t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

func replace(cat string, payload any) session.Mutation {
	s, _ := category.Lookup(cat)
	return session.Mutation{Category: cat, Strategy: s, Payload: payload, At: t1}
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	di := map[string]string{"hostname": "WS-01"}
	s := session.New("S1", di, t0)
	di["hostname"] = "changed"

	assert.Equal(t, "WS-01", s.DeviceInfo["hostname"], "device info must be copied")
	assert.Equal(t, session.StatusPartial, s.Status)
	assert.Empty(t, s.CollectedCategories)
	assert.NotNil(t, s.CategoryData)
	assert.Equal(t, t0, s.CreatedAt)
	assert.Equal(t, t0, s.UpdatedAt)
}

func TestApplyReplaceIsIdempotent(t *testing.T) {
	t.Parallel()

	s := session.New("S1", nil, t0)
	m := replace("wifi", []any{map[string]any{"network": "Home", "password": "x"}})
	m.Apply(&s)
	once := s.Clone()
	m.Apply(&s)

	assert.Equal(t, once.CategoryData["wifi"], s.CategoryData["wifi"])
	assert.Equal(t, []string{"wifi"}, s.CollectedCategories)
	assert.Equal(t, t1, s.UpdatedAt)
}

func TestApplyDeepMergeAccumulates(t *testing.T) {
	t.Parallel()

	s := session.New("S1", nil, t0)
	replace("bookmarks", map[string]any{"chrome": []any{"a"}}).Apply(&s)
	replace("bookmarks", map[string]any{"brave": []any{"b"}}).Apply(&s)
	replace("bookmarks", map[string]any{"chrome": []any{"c"}}).Apply(&s)

	got, ok := s.CategoryData["bookmarks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"c"}, got["chrome"], "colliding keys are overwritten")
	assert.Equal(t, []any{"b"}, got["brave"])
	assert.Equal(t, []string{"bookmarks"}, s.CollectedCategories)
}

func TestApplyDeviceInfoMergesPerKey(t *testing.T) {
	t.Parallel()

	s := session.New("S1", map[string]string{"hostname": "WS-01", "username": "bob"}, t0)
	session.Mutation{DeviceInfo: map[string]string{"username": "alice", "ip": "10.0.0.5"}, At: t1}.Apply(&s)

	assert.Equal(t, map[string]string{"hostname": "WS-01", "username": "alice", "ip": "10.0.0.5"}, s.DeviceInfo)
	assert.Empty(t, s.CollectedCategories)
}

func TestApplyCompletionThreshold(t *testing.T) {
	t.Parallel()

	s := session.New("S2", nil, t0)
	for _, c := range []string{"chrome", "brave", "edge", "wifi"} {
		replace(c, []any{1}).Apply(&s)
	}
	assert.Equal(t, session.StatusPartial, s.Status, "four categories are not enough")

	for i := range 10 {
		replace("custom_"+string(rune('a'+i)), "x").Apply(&s)
	}
	assert.Equal(t, session.StatusPartial, s.Status, "unknown categories never count")
	assert.Equal(t, 14, s.CategoryCount())

	replace("system", map[string]any{"os": "Windows"}).Apply(&s)
	assert.Equal(t, session.StatusComplete, s.Status)

	replace("chrome", []any{2}).Apply(&s)
	session.Mutation{At: t1.Add(time.Hour)}.Apply(&s)
	assert.Equal(t, session.StatusComplete, s.Status, "complete never reverts")
}

func TestApplyNoOpTouchesUpdatedAt(t *testing.T) {
	t.Parallel()

	s := session.New("S1", nil, t0)
	replace("wifi", []any{}).Apply(&s)
	before := s.Clone()

	later := t1.Add(time.Hour)
	session.Mutation{At: later}.Apply(&s)

	assert.Equal(t, later, s.UpdatedAt)
	assert.Equal(t, before.CollectedCategories, s.CollectedCategories)
	assert.Equal(t, before.Status, s.Status)
	assert.Equal(t, before.CategoryData, s.CategoryData)
}

func TestApplyCategoryWithoutPayloadIsIgnored(t *testing.T) {
	t.Parallel()

	s := session.New("S1", nil, t0)
	session.Mutation{Category: "wifi", At: t1}.Apply(&s)
	assert.Empty(t, s.CollectedCategories)
	assert.NotContains(t, s.CategoryData, "wifi")
}

func TestApplyEmptyScalarPayloadIsIgnored(t *testing.T) {
	t.Parallel()

	for _, payload := range []any{"", false, float64(0), 0} {
		s := session.New("S1", nil, t0)
		replace("wifi", payload).Apply(&s)
		assert.Empty(t, s.CollectedCategories, "payload %#v", payload)
		assert.NotContains(t, s.CategoryData, "wifi")
		assert.Equal(t, t1, s.UpdatedAt)
	}
}

func TestEmptyPayload(t *testing.T) {
	t.Parallel()

	for _, v := range []any{nil, "", false, float64(0), int64(0), uint64(0)} {
		assert.True(t, session.EmptyPayload(v), "%#v", v)
	}
	for _, v := range []any{"x", true, float64(-1), []any{}, map[string]any{}} {
		assert.False(t, session.EmptyPayload(v), "%#v", v)
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	t.Run("deep merge onto non-map replaces", func(t *testing.T) {
		t.Parallel()
		got := session.Merge(category.DeepMergeMap, []any{"old"}, map[string]any{"k": 1})
		assert.Equal(t, map[string]any{"k": 1}, got)
	})

	t.Run("deep merge with non-map payload replaces", func(t *testing.T) {
		t.Parallel()
		got := session.Merge(category.DeepMergeMap, map[string]any{"k": 1}, "flat")
		assert.Equal(t, "flat", got)
	})

	t.Run("merge does not alias payload", func(t *testing.T) {
		t.Parallel()
		payload := map[string]any{"chrome": []any{"a"}}
		got := session.Merge(category.Replace, nil, payload).(map[string]any)
		payload["chrome"].([]any)[0] = "mutated"
		assert.Equal(t, []any{"a"}, got["chrome"])
	})
}

func TestSummaryAndClone(t *testing.T) {
	t.Parallel()

	s := session.New("S1", map[string]string{"hostname": "WS-01"}, t0)
	s.TargetName = "finance laptop"
	replace("wifi", []any{map[string]any{"network": "Home"}}).Apply(&s)

	sum := s.Summary()
	assert.Equal(t, "S1", sum.ID)
	assert.Equal(t, "finance laptop", sum.TargetName)
	assert.Equal(t, 1, sum.CategoryCount)
	assert.Equal(t, []string{"wifi"}, sum.CollectedCategories)

	c := s.Clone()
	c.CategoryData["wifi"].([]any)[0].(map[string]any)["network"] = "Other"
	c.DeviceInfo["hostname"] = "other"
	assert.Equal(t, "Home", s.CategoryData["wifi"].([]any)[0].(map[string]any)["network"])
	assert.Equal(t, "WS-01", s.DeviceInfo["hostname"])
}

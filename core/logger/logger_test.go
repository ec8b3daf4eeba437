package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/triage/core/logger"
)

type ctxKey struct{}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestProductionPreset(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithEnvironment("prod", "triage"), logger.WithOutput(&buf))

	log.Debug("hidden")
	assert.Zero(t, buf.Len(), "debug is below the production level")

	log.Info("session created", logger.SessionID("S1"), logger.Category("wifi"), logger.Error(nil))
	rec := decodeLine(t, &buf)
	assert.Equal(t, "triage", rec["service"])
	assert.Equal(t, "production", rec["env"])
	assert.Equal(t, "S1", rec["session_id"])
	assert.Equal(t, "wifi", rec["category"])
	assert.NotContains(t, rec, "error", "nil errors are dropped")
}

func TestDevelopmentPresetIsText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithEnvironment("", "triage"), logger.WithOutput(&buf))
	log.Debug("visible", logger.Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "env=development")
	assert.Contains(t, out, "error=boom")
}

func TestContextExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithJSONFormatter(),
		logger.WithOutput(&buf),
		logger.WithContextValue("request_id", ctxKey{}),
	).With(logger.Component("httpapi"))

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
	log.InfoContext(ctx, "handled")

	rec := decodeLine(t, &buf)
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "httpapi", rec["component"])

	buf.Reset()
	log.InfoContext(context.Background(), "no id")
	assert.NotContains(t, decodeLine(t, &buf), "request_id")
}

func TestLevelOverride(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithDevelopment("triage"), logger.WithLevel(slog.LevelWarn), logger.WithOutput(&buf))
	log.Info("dropped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestEmptyAttrs(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.SessionID("").Equal(slog.Attr{}))
	assert.True(t, logger.Category("").Equal(slog.Attr{}))
	assert.True(t, logger.RequestID("").Equal(slog.Attr{}))
	assert.Equal(t, "driver", logger.Driver("redis").Key)
}

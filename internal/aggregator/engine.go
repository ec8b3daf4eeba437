package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/dmitrymomot/triage/core/logger"
	"github.com/dmitrymomot/triage/core/sanitizer"
	"github.com/dmitrymomot/triage/internal/category"
	"github.com/dmitrymomot/triage/internal/session"
)

// Fragment is one chunk uploaded by a collector.
type Fragment struct {
	SessionID  string
	Category   string
	Payload    any
	DeviceInfo map[string]string
}

// Result acknowledges an applied fragment.
type Result struct {
	SessionID     string         `json:"session_id"`
	CategoryCount int            `json:"category_count"`
	Status        session.Status `json:"status"`
	Created       bool           `json:"-"`
}

// Engine merges fragments into sessions and answers operator queries.
// It holds no per-session state; the store is the only shared resource.
type Engine struct {
	store Store
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
}

// New creates an engine backed by store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cfg:   DefaultConfig(),
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit validates f, ensures its session exists and applies the fragment in a
// single store write. The merge is replay-safe, so collectors may resend a
// fragment after ErrStorageUnavailable.
func (e *Engine) Submit(ctx context.Context, f Fragment) (Result, error) {
	if f.SessionID == "" {
		return Result{}, fmt.Errorf("%w: session_id is required", session.ErrMalformedRequest)
	}
	if f.Category != "" && !category.Valid(f.Category) {
		return Result{}, fmt.Errorf("%w: invalid category name %q", session.ErrMalformedRequest, f.Category)
	}

	type found struct {
		s       session.Session
		created bool
	}
	res, err := withRetry(ctx, e, "find_or_init", func() (found, error) {
		s, created, err := e.store.FindOrInit(ctx, f.SessionID, f.DeviceInfo)
		return found{s, created}, err
	})
	if err != nil {
		return Result{}, err
	}

	if res.created {
		e.log.InfoContext(ctx, "new session",
			logger.Component("aggregator"),
			logger.SessionID(f.SessionID),
			slog.String("hostname", res.s.DeviceInfo["hostname"]),
			slog.String("username", res.s.DeviceInfo["username"]),
			slog.String("ip", deviceIP(res.s.DeviceInfo)),
		)
	}

	m := e.mutation(ctx, f, res.created)

	updated, err := withRetry(ctx, e, "apply_update", func() (session.Session, error) {
		return e.store.ApplyUpdate(ctx, f.SessionID, m)
	})
	if err != nil {
		return Result{}, err
	}

	if m.HasCategory() {
		e.log.InfoContext(ctx, "data received",
			logger.Component("aggregator"),
			logger.SessionID(f.SessionID),
			logger.Category(m.Category),
			logger.Count("items", itemCount(m.Payload)),
			logger.Status(string(updated.Status)),
		)
	}
	if res.s.Status != session.StatusComplete && updated.Status == session.StatusComplete {
		e.log.InfoContext(ctx, "session complete",
			logger.Component("aggregator"),
			logger.SessionID(f.SessionID),
			logger.Count("category_count", updated.CategoryCount()),
		)
	}

	return Result{
		SessionID:     updated.ID,
		CategoryCount: updated.CategoryCount(),
		Status:        updated.Status,
		Created:       res.created,
	}, nil
}

// mutation translates a fragment into store-agnostic field merges.
func (e *Engine) mutation(ctx context.Context, f Fragment, created bool) session.Mutation {
	m := session.Mutation{At: e.now()}

	// On the creation path the seed already holds the fragment's device_info.
	if !created && len(f.DeviceInfo) > 0 {
		m.DeviceInfo = maps.Clone(f.DeviceInfo)
	}

	if f.Category == "" || session.EmptyPayload(f.Payload) {
		return m
	}

	// device_info is never a category, whatever shape its data has.
	if f.Category == category.DeviceInfo {
		delta, ok := f.Payload.(map[string]any)
		if !ok {
			e.log.WarnContext(ctx, "device_info fragment without an object payload ignored",
				logger.Component("aggregator"),
				logger.SessionID(f.SessionID),
				slog.String("payload_type", fmt.Sprintf("%T", f.Payload)),
			)
			return m
		}
		if m.DeviceInfo == nil {
			m.DeviceInfo = make(map[string]string, len(delta))
		}
		for k, v := range delta {
			m.DeviceInfo[k] = Stringify(v)
		}
		return m
	}

	strategy, recognized := category.Lookup(f.Category)
	if !recognized {
		e.log.InfoContext(ctx, "unknown category stored without counting toward completion",
			logger.Component("aggregator"),
			logger.SessionID(f.SessionID),
			logger.Category(f.Category),
		)
	}

	m.Category = f.Category
	m.Strategy = strategy
	m.Payload = f.Payload
	return m
}

// List returns session summaries newest first. A non-positive limit means the
// default; limits above the maximum are capped.
func (e *Engine) List(ctx context.Context, limit int) ([]session.Summary, error) {
	switch {
	case limit <= 0:
		limit = e.cfg.DefaultListLimit
	case limit > e.cfg.MaxListLimit:
		limit = e.cfg.MaxListLimit
	}
	return withRetry(ctx, e, "list", func() ([]session.Summary, error) {
		return e.store.List(ctx, limit)
	})
}

// Get returns the full session document.
func (e *Engine) Get(ctx context.Context, id string) (session.Session, error) {
	if id == "" {
		return session.Session{}, fmt.Errorf("%w: session_id is required", session.ErrMalformedRequest)
	}
	return withRetry(ctx, e, "get", func() (session.Session, error) {
		return e.store.Get(ctx, id)
	})
}

// Delete removes a session. A fragment arriving afterwards re-creates it.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: session_id is required", session.ErrMalformedRequest)
	}
	deleted, err := withRetry(ctx, e, "delete", func() (bool, error) {
		return e.store.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	if !deleted {
		return session.ErrNotFound
	}
	e.log.InfoContext(ctx, "session deleted", logger.Component("aggregator"), logger.SessionID(id))
	return nil
}

// Rename sets the operator label after collapsing it to a single clean line.
// Concurrent renames are last-writer-wins.
func (e *Engine) Rename(ctx context.Context, id, targetName string) (session.Session, error) {
	if id == "" {
		return session.Session{}, fmt.Errorf("%w: session_id is required", session.ErrMalformedRequest)
	}
	targetName = sanitizer.Label(targetName)
	if len(targetName) > e.cfg.MaxTargetNameLength {
		return session.Session{}, fmt.Errorf("%w: target_name exceeds %d bytes", session.ErrMalformedRequest, e.cfg.MaxTargetNameLength)
	}
	return withRetry(ctx, e, "rename", func() (session.Session, error) {
		return e.store.Rename(ctx, id, targetName)
	})
}

// Ping checks store connectivity for readiness probes.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Stringify renders a decoded device_info value as a string.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; keep integers free of exponents.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprint(t)
	case map[string]any, []any:
		// Nested values keep their wire form.
		if raw, err := json.Marshal(t); err == nil {
			return string(raw)
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}

func deviceIP(di map[string]string) string {
	if ip := di["ip_address"]; ip != "" {
		return ip
	}
	return di["ip"]
}

func itemCount(payload any) int {
	switch t := payload.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	default:
		return 1
	}
}

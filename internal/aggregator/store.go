package aggregator

import (
	"context"

	"github.com/dmitrymomot/triage/internal/session"
)

// Store persists session documents. Every method must be safe for concurrent use,
// and ApplyUpdate must not lose concurrent mutations of the same session.
//
// Backends report transient failures by wrapping session.ErrStorageUnavailable
// or session.ErrConflict; the engine retries those and nothing else.
type Store interface {
	// FindOrInit returns the session, creating it atomically with deviceInfo when absent.
	FindOrInit(ctx context.Context, id string, deviceInfo map[string]string) (s session.Session, created bool, err error)
	// ApplyUpdate applies m in one atomic write and returns the result.
	// A session deleted in the meantime is re-created.
	ApplyUpdate(ctx context.Context, id string, m session.Mutation) (session.Session, error)
	// List returns up to limit summaries, newest first.
	List(ctx context.Context, limit int) ([]session.Summary, error)
	Get(ctx context.Context, id string) (session.Session, error)
	Delete(ctx context.Context, id string) (bool, error)
	// Rename sets target_name and leaves every ingestion field untouched.
	Rename(ctx context.Context, id, targetName string) (session.Session, error)
	Ping(ctx context.Context) error
}

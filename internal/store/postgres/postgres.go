// Package postgres stores sessions in a PostgreSQL table with JSONB columns.
// Updates lock the row with SELECT ... FOR UPDATE and apply the mutation in Go,
// so concurrent fragments for one session are serialized by the database.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/triage/integration/database/pg"
	"github.com/dmitrymomot/triage/internal/session"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the embedded goose migrations for pg.Migrate.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	columns        = `session_id, target_name, device_info, collected_categories, category_data, status, created_at, updated_at`
	summaryColumns = `session_id, target_name, device_info, collected_categories, status, created_at, updated_at`
)

// Store implements aggregator.Store on a pgx pool. A transaction stored in the
// context with pg.WithTx is joined through a savepoint.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created_at on FindOrInit.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store over pool. Run pg.Migrate with Migrations first.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) db(ctx context.Context) querier {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx
	}
	return s.pool
}

func (s *Store) begin(ctx context.Context) (pgx.Tx, error) {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx.Begin(ctx)
	}
	return s.pool.Begin(ctx)
}

func (s *Store) FindOrInit(ctx context.Context, id string, deviceInfo map[string]string) (session.Session, bool, error) {
	fresh := session.New(id, deviceInfo, s.now())

	tag, err := s.db(ctx).Exec(ctx, `
		INSERT INTO sessions (session_id, device_info, collected_categories, category_data, status, created_at, updated_at)
		VALUES ($1, $2, '{}', '{}'::jsonb, $3, $4, $4)
		ON CONFLICT (session_id) DO NOTHING`,
		id, fresh.DeviceInfo, string(fresh.Status), fresh.CreatedAt,
	)
	if err != nil {
		return session.Session{}, false, wrapErr("find or init", err)
	}

	got, err := s.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return session.Session{}, false, fmt.Errorf("postgres find or init: %w", session.ErrConflict)
	}
	if err != nil {
		return session.Session{}, false, err
	}
	return got, tag.RowsAffected() == 1, nil
}

func (s *Store) ApplyUpdate(ctx context.Context, id string, m session.Mutation) (session.Session, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return session.Session{}, wrapErr("apply update", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanSession(tx.QueryRow(ctx, `SELECT `+columns+` FROM sessions WHERE session_id = $1 FOR UPDATE`, id))
	missing := errors.Is(err, pgx.ErrNoRows)
	if err != nil && !missing {
		return session.Session{}, wrapErr("apply update", err)
	}
	if missing {
		current = session.New(id, nil, m.At)
	}

	m.Apply(&current)

	if missing {
		tag, err := tx.Exec(ctx, `
			INSERT INTO sessions (`+columns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (session_id) DO NOTHING`,
			current.ID, current.TargetName, current.DeviceInfo, current.CollectedCategories,
			current.CategoryData, string(current.Status), current.CreatedAt, current.UpdatedAt,
		)
		if err != nil {
			return session.Session{}, wrapErr("apply update", err)
		}
		if tag.RowsAffected() == 0 {
			return session.Session{}, fmt.Errorf("postgres apply update: %w", session.ErrConflict)
		}
	} else {
		_, err := tx.Exec(ctx, `
			UPDATE sessions
			SET device_info = $2, collected_categories = $3, category_data = $4, status = $5, updated_at = $6
			WHERE session_id = $1`,
			current.ID, current.DeviceInfo, current.CollectedCategories,
			current.CategoryData, string(current.Status), current.UpdatedAt,
		)
		if err != nil {
			return session.Session{}, wrapErr("apply update", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return session.Session{}, wrapErr("apply update", err)
	}
	return current, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]session.Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM sessions ORDER BY created_at DESC, session_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list", err)
	}
	defer rows.Close()

	out := []session.Summary{}
	for rows.Next() {
		var (
			sess   session.Session
			status string
		)
		if err := rows.Scan(&sess.ID, &sess.TargetName, &sess.DeviceInfo, &sess.CollectedCategories, &status, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, wrapErr("list", err)
		}
		sess.Status = session.Status(status)
		normalizeTimes(&sess)
		out = append(out, sess.Summary())
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	sess, err := scanSession(s.db(ctx).QueryRow(ctx, `SELECT `+columns+` FROM sessions WHERE session_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, wrapErr("get", err)
	}
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db(ctx).Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, id)
	if err != nil {
		return false, wrapErr("delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Rename(ctx context.Context, id, targetName string) (session.Session, error) {
	sess, err := scanSession(s.db(ctx).QueryRow(ctx,
		`UPDATE sessions SET target_name = $2 WHERE session_id = $1 RETURNING `+columns,
		id, targetName,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, wrapErr("rename", err)
	}
	return sess, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := pg.Healthcheck(s.pool)(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

func scanSession(row pgx.Row) (session.Session, error) {
	var (
		sess   session.Session
		status string
	)
	err := row.Scan(
		&sess.ID, &sess.TargetName, &sess.DeviceInfo, &sess.CollectedCategories,
		&sess.CategoryData, &status, &sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		return session.Session{}, err
	}
	sess.Status = session.Status(status)
	normalizeTimes(&sess)
	if sess.CategoryData == nil {
		sess.CategoryData = map[string]any{}
	}
	return sess, nil
}

func normalizeTimes(s *session.Session) {
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if s.DeviceInfo == nil {
		s.DeviceInfo = map[string]string{}
	}
	if s.CollectedCategories == nil {
		s.CollectedCategories = []string{}
	}
}

func wrapErr(op string, err error) error {
	switch {
	case pg.IsDuplicateKeyError(err):
		return fmt.Errorf("postgres %s: %w: %w", op, session.ErrConflict, err)
	case pg.IsRetryableError(err), isConnError(err):
		return fmt.Errorf("postgres %s: %w: %w", op, session.ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("postgres %s: %w", op, err)
	}
}

func isConnError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Package redis stores each session as one JSON document plus a sorted set
// scored by negated creation time, so an ascending range is newest first and
// equal timestamps fall back to member order (session_id ascending). Writes use WATCH/MULTI; a lost race returns
// session.ErrConflict and the engine retries.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	redisdb "github.com/dmitrymomot/triage/integration/database/redis"
	"github.com/dmitrymomot/triage/internal/session"
)

// DefaultKeyPrefix namespaces every key the store writes.
const DefaultKeyPrefix = "triage"

// Config configures the store.
type Config struct {
	// Client is the shared connection pool. Required.
	Client redis.UniversalClient
	// KeyPrefix defaults to DefaultKeyPrefix.
	KeyPrefix string
	// Now is the clock used for created_at (default: time.Now in UTC).
	Now func() time.Time
}

// Store implements aggregator.Store on Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New validates cfg and returns a store.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{client: cfg.Client, prefix: cfg.KeyPrefix, now: cfg.Now}, nil
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + ":session:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + ":sessions:newest"
}

func (s *Store) FindOrInit(ctx context.Context, id string, deviceInfo map[string]string) (session.Session, bool, error) {
	var (
		result  session.Session
		created bool
	)
	key := s.sessionKey(id)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, found, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if found {
			result = existing
			return nil
		}

		fresh := session.New(id, deviceInfo, s.now())
		if err := s.save(ctx, tx, fresh); err != nil {
			return err
		}
		result, created = fresh, true
		return nil
	}, key)
	if err != nil {
		return session.Session{}, false, wrapErr("find or init", err)
	}
	return result, created, nil
}

func (s *Store) ApplyUpdate(ctx context.Context, id string, m session.Mutation) (session.Session, error) {
	var result session.Session
	key := s.sessionKey(id)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, found, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			current = session.New(id, nil, m.At)
		}
		m.Apply(&current)
		if err := s.save(ctx, tx, current); err != nil {
			return err
		}
		result = current
		return nil
	}, key)
	if err != nil {
		return session.Session{}, wrapErr("apply update", err)
	}
	return result, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]session.Summary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := s.client.ZRangeArgs(ctx, redis.ZRangeArgs{
		Key:   s.indexKey(),
		Start: 0,
		Stop:  stop,
	}).Result()
	if err != nil {
		return nil, wrapErr("list", err)
	}
	if len(ids) == 0 {
		return []session.Summary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr("list", err)
	}

	out := make([]session.Summary, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			// Deleted after the index read.
			continue
		}
		var sess session.Session
		if err := json.Unmarshal([]byte(str), &sess); err != nil {
			return nil, fmt.Errorf("redis list: decode session: %w", err)
		}
		out = append(out, sess.Summary())
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	sess, found, err := s.load(ctx, s.client, s.sessionKey(id))
	if err != nil {
		return session.Session{}, wrapErr("get", err)
	}
	if !found {
		return session.Session{}, session.ErrNotFound
	}
	return sess, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.sessionKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return false, wrapErr("delete", err)
	}
	return del.Val() > 0, nil
}

func (s *Store) Rename(ctx context.Context, id, targetName string) (session.Session, error) {
	var result session.Session
	key := s.sessionKey(id)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, found, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			return session.ErrNotFound
		}
		current.TargetName = targetName
		if err := s.save(ctx, tx, current); err != nil {
			return err
		}
		result = current
		return nil
	}, key)
	if errors.Is(err, session.ErrNotFound) {
		return session.Session{}, err
	}
	if err != nil {
		return session.Session{}, wrapErr("rename", err)
	}
	return result, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := redisdb.Healthcheck(s.client)(ctx); err != nil {
		return wrapErr("ping", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, c getter, key string) (session.Session, bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Session{}, false, nil
	}
	if err != nil {
		return session.Session{}, false, err
	}

	var sess session.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return session.Session{}, false, fmt.Errorf("decode session %s: %w", key, err)
	}
	return sess, true, nil
}

// save queues the document write and the index entry in one MULTI block.
// It fails with redis.TxFailedErr when a watched key changed.
func (s *Store) save(ctx context.Context, tx *redis.Tx, sess session.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), raw, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  -float64(sess.CreatedAt.UnixMilli()),
			Member: sess.ID,
		})
		return nil
	})
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func wrapErr(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("redis %s: %w", op, session.ErrConflict)
	case errors.As(err, &netErr),
		errors.Is(err, io.EOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, redis.ErrClosed):
		return fmt.Errorf("redis %s: %w: %w", op, session.ErrStorageUnavailable, err)
	default:
		return fmt.Errorf("redis %s: %w", op, err)
	}
}

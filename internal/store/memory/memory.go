// Package memory is an in-process session store guarded by a single mutex.
// It backs tests and single-instance deployments that accept losing data on restart.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/triage/internal/session"
)

// Store keeps deep copies of every session so callers never share maps with it.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]session.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) FindOrInit(_ context.Context, id string, deviceInfo map[string]string) (session.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok {
		return existing.Clone(), false, nil
	}

	created := session.New(id, deviceInfo, s.now())
	s.sessions[id] = created
	return created.Clone(), true, nil
}

func (s *Store) ApplyUpdate(_ context.Context, id string, m session.Mutation) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[id]
	if !ok {
		current = session.New(id, nil, m.At)
	}
	current = current.Clone()
	m.Apply(&current)
	s.sessions[id] = current
	return current.Clone(), nil
}

func (s *Store) List(_ context.Context, limit int) ([]session.Summary, error) {
	s.mu.RLock()
	out := make([]session.Summary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Summary())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b session.Summary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *Store) Rename(_ context.Context, id, targetName string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	sess.TargetName = targetName
	s.sessions[id] = sess
	return sess.Clone(), nil
}

func (s *Store) Ping(context.Context) error { return nil }

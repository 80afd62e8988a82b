// Package memory is the single-process store backend.
package memory

import (
	"context"
	"sync"

	"github.com/needle-drop/lobby-service/internal/store"
)

type Store struct {
	mu      sync.Mutex
	entries map[string]store.Entry
	rev     uint64
	closed  bool
	fanout  *store.Fanout
}

func New() *Store {
	return &Store{
		entries: make(map[string]store.Entry),
		fanout:  store.NewFanout(),
	}
}

func (s *Store) Get(_ context.Context, key string) (store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.Entry{}, store.ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		return store.Entry{}, store.ErrNotFound
	}
	e.Value = append([]byte(nil), e.Value...)
	return e, nil
}

func (s *Store) Create(_ context.Context, key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}
	if _, ok := s.entries[key]; ok {
		return 0, store.ErrExists
	}
	return s.putLocked(key, value), nil
}

func (s *Store) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}
	cur, ok := s.entries[key]
	if !ok || cur.Revision != revision {
		return 0, store.ErrConflict
	}
	return s.putLocked(key, value), nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	s.rev++
	s.fanout.Publish(store.Entry{Key: key, Revision: s.rev, Deleted: true})
	return nil
}

func (s *Store) Watch(ctx context.Context, key string) (<-chan store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return s.fanout.Watch(ctx, key), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.fanout.CloseAll()
	}
	return nil
}

func (s *Store) putLocked(key string, value []byte) uint64 {
	s.rev++
	e := store.Entry{Key: key, Value: append([]byte(nil), value...), Revision: s.rev}
	s.entries[key] = e
	s.fanout.Publish(e)
	return s.rev
}

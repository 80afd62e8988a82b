// Package natsstore keeps versioned records in a JetStream key/value bucket.
// Bucket revisions are the stream sequence, so they only grow.
package natsstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/needle-drop/lobby-service/internal/store"
)

type Options struct {
	// Bucket is created on first use, "LOBBY" if empty.
	Bucket string
	// TTL expires records that are not rewritten. Zero keeps them forever.
	TTL time.Duration
	// Memory selects in-memory JetStream storage instead of file storage.
	Memory bool
}

type Store struct {
	kv nats.KeyValue

	mu     sync.Mutex
	closed bool
	nextID uint64
	stops  map[uint64]func()
}

func New(nc *nats.Conn, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		opts.Bucket = "LOBBY"
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	kv, err := js.KeyValue(opts.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		storage := nats.FileStorage
		if opts.Memory {
			storage = nats.MemoryStorage
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:  opts.Bucket,
			History: 1,
			TTL:     opts.TTL,
			Storage: storage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("kv bucket %s: %w", opts.Bucket, err)
	}
	return &Store{kv: kv, stops: make(map[uint64]func())}, nil
}

func (s *Store) Get(_ context.Context, key string) (store.Entry, error) {
	if s.isClosed() {
		return store.Entry{}, store.ErrClosed
	}
	e, err := s.kv.Get(key)
	if err != nil {
		return store.Entry{}, mapErr(err)
	}
	return toEntry(e), nil
}

func (s *Store) Create(_ context.Context, key string, value []byte) (uint64, error) {
	if s.isClosed() {
		return 0, store.ErrClosed
	}
	rev, err := s.kv.Create(key, value)
	if err != nil {
		if wrongSequence(err) {
			return 0, store.ErrExists
		}
		return 0, mapErr(err)
	}
	return rev, nil
}

func (s *Store) Update(_ context.Context, key string, value []byte, revision uint64) (uint64, error) {
	if s.isClosed() {
		return 0, store.ErrClosed
	}
	if revision == 0 {
		// ревизия 0 в JetStream означает "ключа нет", это не CAS
		return 0, store.ErrConflict
	}
	rev, err := s.kv.Update(key, value, revision)
	if err != nil {
		if wrongSequence(err) {
			return 0, store.ErrConflict
		}
		return 0, mapErr(err)
	}
	return rev, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	err := s.kv.Delete(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil
	}
	return mapErr(err)
}

func (s *Store) Watch(ctx context.Context, key string) (<-chan store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}

	w, err := s.kv.Watch(key, nats.UpdatesOnly())
	if err != nil {
		return nil, mapErr(err)
	}

	out := make(chan store.Entry, 8)
	stop := make(chan struct{})
	var once sync.Once
	s.nextID++
	id := s.nextID
	s.stops[id] = func() { once.Do(func() { close(stop) }) }

	go func() {
		defer close(out)
		defer func() { _ = w.Stop() }()
		defer s.forget(id)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case e, ok := <-w.Updates():
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				select {
				case out <- toEntry(e):
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Store) forget(id uint64) {
	s.mu.Lock()
	delete(s.stops, id)
	s.mu.Unlock()
}

// Close останавливает вотчеры. Соединение NATS закрывает вызывающий.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for id, stop := range s.stops {
		stop()
		delete(s.stops, id)
	}
	return nil
}

// --- helpers ---

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func toEntry(e nats.KeyValueEntry) store.Entry {
	op := e.Operation()
	return store.Entry{
		Key:      e.Key(),
		Value:    e.Value(),
		Revision: e.Revision(),
		Deleted:  op == nats.KeyValueDelete || op == nats.KeyValuePurge,
	}
}

func wrongSequence(err error) bool {
	if errors.Is(err, nats.ErrKeyExists) {
		return true
	}
	var apiErr *nats.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == nats.JSErrCodeStreamWrongLastSequence
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, nats.ErrKeyNotFound), errors.Is(err, nats.ErrKeyDeleted):
		return store.ErrNotFound
	case errors.Is(err, nats.ErrConnectionClosed):
		return store.ErrClosed
	}
	slog.Debug("nats store error", "err", err)
	return err
}

// Package redisstore keeps versioned records in Redis hashes. Writes go
// through Lua scripts so the revision check and the write are atomic, and
// every write publishes the key on a single notification channel.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/needle-drop/lobby-service/internal/store"
)

type Options struct {
	// Prefix is prepended to every key, "lobby" if empty.
	Prefix string
	// TTL expires idle records. Zero keeps them forever.
	TTL time.Duration
}

type Store struct {
	rdb     redis.UniversalClient
	prefix  string
	ttlMS   int64
	channel string

	ps     *redis.PubSub
	fanout *store.Fanout
	cancel context.CancelFunc
	done   chan struct{}

	closeOnce sync.Once
}

// New подписывается на канал уведомлений до возврата, поэтому Watch видит
// все записи после своего вызова.
func New(ctx context.Context, rdb redis.UniversalClient, opts Options) (*Store, error) {
	if opts.Prefix == "" {
		opts.Prefix = "lobby"
	}
	s := &Store{
		rdb:     rdb,
		prefix:  opts.Prefix + ":",
		ttlMS:   opts.TTL.Milliseconds(),
		channel: opts.Prefix + ":changes",
		fanout:  store.NewFanout(),
		done:    make(chan struct{}),
	}

	s.ps = rdb.Subscribe(ctx, s.channel)
	if _, err := s.ps.Receive(ctx); err != nil {
		_ = s.ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.listen(loopCtx)
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) (store.Entry, error) {
	vals, err := s.rdb.HMGet(ctx, s.prefix+key, "v", "r").Result()
	if err != nil {
		return store.Entry{}, s.mapErr(err)
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return store.Entry{}, store.ErrNotFound
	}
	v, _ := vals[0].(string)
	r, _ := vals[1].(string)
	rev, err := strconv.ParseUint(r, 10, 64)
	if err != nil {
		return store.Entry{}, fmt.Errorf("redis revision %q: %w", r, err)
	}
	return store.Entry{Key: key, Value: []byte(v), Revision: rev}, nil
}

func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := createScript.Run(ctx, s.rdb,
		[]string{s.prefix + key, s.revKey()},
		value, s.channel, s.ttlMS,
	).Int64()
	if err != nil {
		return 0, s.mapErr(err)
	}
	if rev == 0 {
		return 0, store.ErrExists
	}
	return uint64(rev), nil
}

func (s *Store) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	rev, err := updateScript.Run(ctx, s.rdb,
		[]string{s.prefix + key, s.revKey()},
		value, s.channel, s.ttlMS, strconv.FormatUint(revision, 10),
	).Int64()
	if err != nil {
		return 0, s.mapErr(err)
	}
	if rev == 0 {
		return 0, store.ErrConflict
	}
	return uint64(rev), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	err := deleteScript.Run(ctx, s.rdb,
		[]string{s.prefix + key, s.revKey()},
		s.channel,
	).Err()
	return s.mapErr(err)
}

func (s *Store) Watch(ctx context.Context, key string) (<-chan store.Entry, error) {
	select {
	case <-s.done:
		return nil, store.ErrClosed
	default:
	}
	return s.fanout.Watch(ctx, key), nil
}

// Close не закрывает переданный клиент Redis.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		err = s.ps.Close()
		s.fanout.CloseAll()
	})
	return err
}

// --- helpers ---

func (s *Store) listen(ctx context.Context) {
	for msg := range s.ps.Channel() {
		key, ok := strings.CutPrefix(msg.Payload, s.prefix)
		if !ok || !s.fanout.Has(key) {
			continue
		}
		e, err := s.Get(ctx, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.fanout.Publish(store.Entry{Key: key, Deleted: true})
		case err != nil:
			if ctx.Err() == nil {
				slog.Warn("redis store: reload after notify failed", "key", key, "err", err)
			}
		default:
			s.fanout.Publish(e)
		}
	}
}

func (s *Store) revKey() string { return s.prefix + "_rev" }

func (s *Store) mapErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	select {
	case <-s.done:
		return store.ErrClosed
	default:
	}
	if errors.Is(err, redis.ErrClosed) {
		return store.ErrClosed
	}
	return err
}

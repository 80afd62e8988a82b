// Package postgres keeps versioned records in a single table. Revisions come
// from one sequence; every committed write notifies the key over
// LISTEN/NOTIFY and watchers reload the row.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/needle-drop/lobby-service/internal/store"
)

type Store struct {
	pool   *pgxpool.Pool
	fanout *store.Fanout

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New создаёт схему (если её нет) и начинает слушать уведомления до
// возврата.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	for _, q := range querySchema {
		if _, err := pool.Exec(ctx, q); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}

	conn, err := listen(ctx, pool)
	if err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:   pool,
		fanout: store.NewFanout(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listenLoop(loopCtx, conn)
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) (store.Entry, error) {
	var (
		value []byte
		rev   int64
	)
	err := s.pool.QueryRow(ctx, queryGet, key).Scan(&value, &rev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Entry{}, store.ErrNotFound
		}
		return store.Entry{}, s.mapErr(err)
	}
	return store.Entry{Key: key, Value: value, Revision: uint64(rev)}, nil
}

func (s *Store) Create(ctx context.Context, key string, value []byte) (uint64, error) {
	rev, err := s.write(ctx, key, queryCreate, key, value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrExists
	}
	return rev, err
}

func (s *Store) Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error) {
	rev, err := s.write(ctx, key, queryUpdate, key, value, int64(revision))
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, store.ErrConflict
	}
	return rev, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.write(ctx, key, queryDelete, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (s *Store) Watch(ctx context.Context, key string) (<-chan store.Entry, error) {
	select {
	case <-s.done:
		return nil, store.ErrClosed
	default:
	}
	return s.fanout.Watch(ctx, key), nil
}

// Close не закрывает пул.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		s.fanout.CloseAll()
	})
	return nil
}

// --- helpers ---

// write выполняет запрос и NOTIFY в одной транзакции; уведомление уходит
// только после коммита.
func (s *Store) write(ctx context.Context, key, sql string, args ...any) (uint64, error) {
	var rev int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, sql, args...).Scan(&rev); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, queryNotify, key)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		return 0, s.mapErr(err)
	}
	return uint64(rev), nil
}

func listen(ctx context.Context, pool *pgxpool.Pool) (*pgxpool.Conn, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	return conn, nil
}

func (s *Store) listenLoop(ctx context.Context, conn *pgxpool.Conn) {
	for {
		err := s.drain(ctx, conn)
		// соединение после ошибки в неизвестном состоянии, в пул не возвращаем
		_ = conn.Conn().Close(context.Background())
		conn.Release()
		if ctx.Err() != nil {
			return
		}
		slog.Warn("postgres store: listen connection lost", "err", err)

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			conn, err = listen(ctx, s.pool)
			if err == nil {
				break
			}
			slog.Warn("postgres store: relisten failed", "err", err)
		}
	}
}

func (s *Store) drain(ctx context.Context, conn *pgxpool.Conn) error {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		key := n.Payload
		if !s.fanout.Has(key) {
			continue
		}
		e, err := s.Get(ctx, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
			s.fanout.Publish(store.Entry{Key: key, Deleted: true})
		case err != nil:
			if ctx.Err() != nil {
				return err
			}
			slog.Warn("postgres store: reload after notify failed", "key", key, "err", err)
		default:
			s.fanout.Publish(e)
		}
	}
}

func (s *Store) mapErr(err error) error {
	select {
	case <-s.done:
		return store.ErrClosed
	default:
	}
	return err
}

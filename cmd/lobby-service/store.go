package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/needle-drop/lobby-service/config"
	"github.com/needle-drop/lobby-service/internal/store"
	"github.com/needle-drop/lobby-service/internal/store/memory"
	"github.com/needle-drop/lobby-service/internal/store/natsstore"
	"github.com/needle-drop/lobby-service/internal/store/postgres"
	"github.com/needle-drop/lobby-service/internal/store/redisstore"
)

// openStore builds the configured backend. The returned cleanup closes the
// store and then whatever client it runs on.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	ttl := cfg.Store.TTLOr()

	switch cfg.Store.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		st, err := redisstore.New(ctx, rdb, redisstore.Options{Prefix: cfg.Redis.Prefix, TTL: ttl})
		if err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis store: %w", err)
		}
		return st, func() { _ = st.Close(); _ = rdb.Close() }, nil

	case config.BackendNATS:
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Logging.Service),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				slog.Warn("nats disconnected", slog.Any("err", err))
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				slog.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
			}),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("nats: %w", err)
		}
		st, err := natsstore.New(nc, natsstore.Options{Bucket: cfg.NATS.Bucket, TTL: ttl, Memory: cfg.NATS.Memory})
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("nats store: %w", err)
		}
		return st, func() { _ = st.Close(); nc.Close() }, nil

	case config.BackendPostgres:
		life, idle := cfg.Postgres.Lifetimes()
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: life,
			MaxConnIdleTime: idle,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		st, err := postgres.New(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres store: %w", err)
		}
		return st, func() { _ = st.Close(); pool.Close() }, nil

	default:
		st := memory.New()
		return st, func() { _ = st.Close() }, nil
	}
}

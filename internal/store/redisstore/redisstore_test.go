package redisstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/needle-drop/lobby-service/internal/store"
	"github.com/needle-drop/lobby-service/internal/store/redisstore"
	"github.com/needle-drop/lobby-service/internal/store/storetest"
)

var rdb *redis.Client

func TestMain(m *testing.M) {
	if os.Getenv("LOBBY_INTEGRATION") != "1" {
		os.Exit(m.Run())
	}
	ctx := context.Background()

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}

	addr, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		panic(err)
	}
	rdb = redis.NewClient(&redis.Options{Addr: addr})

	code := m.Run()

	_ = rdb.Close()
	_ = redisContainer.Terminate(ctx)
	os.Exit(code)
}

func newStore(t *testing.T) *redisstore.Store {
	t.Helper()
	if rdb == nil {
		t.Skip("set LOBBY_INTEGRATION=1 to run against redis")
	}
	s, err := redisstore.New(context.Background(), rdb, redisstore.Options{Prefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t) })
}

func TestTTL(t *testing.T) {
	if rdb == nil {
		t.Skip("set LOBBY_INTEGRATION=1 to run against redis")
	}
	ctx := context.Background()
	s, err := redisstore.New(ctx, rdb, redisstore.Options{Prefix: "ttl", TTL: 30 * time.Second})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Create(ctx, "k", []byte("v"))
	require.NoError(t, err)

	ttl, err := rdb.PTTL(ctx, "ttl:k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Milliseconds(), int64(0))
}

func TestClosedStoreRejectsWatch(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Close())
	_, err := s.Watch(context.Background(), "k")
	assert.ErrorIs(t, err, store.ErrClosed)
}

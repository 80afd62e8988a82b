package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/needle-drop/lobby-service/internal/store"
	"github.com/needle-drop/lobby-service/internal/store/postgres"
	"github.com/needle-drop/lobby-service/internal/store/storetest"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	if os.Getenv("LOBBY_INTEGRATION") != "1" {
		os.Exit(m.Run())
	}
	ctx := context.Background()

	postgresContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine3.22",
		tcpostgres.WithDatabase("lobby"),
		tcpostgres.WithUsername("lobby"),
		tcpostgres.WithPassword("lobby"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	pool, err = postgres.NewPool(ctx, postgres.PoolConfig{DSN: connString, ApplicationName: "lobby-test"})
	if err != nil {
		panic(err)
	}

	code := m.Run()

	pool.Close()
	_ = postgresContainer.Terminate(ctx)
	os.Exit(code)
}

func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	if pool == nil {
		t.Skip("set LOBBY_INTEGRATION=1 to run against postgres")
	}
	s, err := postgres.New(context.Background(), pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t) })
}

func TestWatchAcrossStores(t *testing.T) {
	a := newStore(t)
	b := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Watch(ctx, "cross")
	require.NoError(t, err)

	rev, err := a.Create(ctx, "cross", []byte("from-a"))
	require.NoError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, rev, e.Revision)
		assert.Equal(t, "from-a", string(e.Value))
	case <-time.After(5 * time.Second):
		t.Fatal("no notification from other store")
	}
}

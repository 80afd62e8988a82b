package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needle-drop/lobby-service/internal/store"
	"github.com/needle-drop/lobby-service/internal/store/storetest"
)

func TestContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestClosed(t *testing.T) {
	s := New()
	ctx := context.Background()
	ch, err := s.Watch(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, ok := <-ch
	assert.False(t, ok)

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, store.ErrClosed)
	_, err = s.Create(ctx, "k", nil)
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.Create(ctx, "k", []byte("abc"))
	require.NoError(t, err)

	e, err := s.Get(ctx, "k")
	require.NoError(t, err)
	e.Value[0] = 'x'

	e, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(e.Value))
}

// Package storetest holds the behaviour every store backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needle-drop/lobby-service/internal/store"
)

// Factory returns a fresh, empty store. Keys used by Run are prefixed with
// t.Name() so backends that share a server between tests do not collide.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), key(t, "missing"))
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("CreateThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "a")
		rev, err := s.Create(ctx, k, []byte("one"))
		require.NoError(t, err)
		assert.NotZero(t, rev)

		e, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), e.Value)
		assert.Equal(t, rev, e.Revision)
	})

	t.Run("CreateExisting", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "a")
		_, err := s.Create(ctx, k, []byte("one"))
		require.NoError(t, err)
		_, err = s.Create(ctx, k, []byte("two"))
		assert.ErrorIs(t, err, store.ErrExists)

		e, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), e.Value)
	})

	t.Run("UpdateRevisionCheck", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "a")
		rev, err := s.Create(ctx, k, []byte("one"))
		require.NoError(t, err)

		next, err := s.Update(ctx, k, []byte("two"), rev)
		require.NoError(t, err)
		assert.Greater(t, next, rev)

		_, err = s.Update(ctx, k, []byte("three"), rev)
		assert.ErrorIs(t, err, store.ErrConflict)

		e, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), e.Value)
		assert.Equal(t, next, e.Revision)
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Update(context.Background(), key(t, "missing"), []byte("x"), 1)
		assert.ErrorIs(t, err, store.ErrConflict)
	})

	t.Run("DeleteThenCreate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "a")
		_, err := s.Create(ctx, k, []byte("one"))
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, k))
		require.NoError(t, s.Delete(ctx, k))

		_, err = s.Get(ctx, k)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.Create(ctx, k, []byte("two"))
		assert.NoError(t, err)
	})

	t.Run("ConcurrentUpdatesOneWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		k := key(t, "a")
		rev, err := s.Create(ctx, k, []byte("base"))
		require.NoError(t, err)

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Update(ctx, k, []byte("w"), rev); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				} else if !errors.Is(err, store.ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("WatchSeesLaterWrites", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		k := key(t, "a")

		ch, err := s.Watch(ctx, k)
		require.NoError(t, err)

		rev, err := s.Create(ctx, k, []byte("one"))
		require.NoError(t, err)
		e := next(t, ch)
		assert.Equal(t, rev, e.Revision)
		assert.Equal(t, []byte("one"), e.Value)

		rev, err = s.Update(ctx, k, []byte("two"), rev)
		require.NoError(t, err)
		e = until(t, ch, func(e store.Entry) bool { return e.Revision >= rev })
		assert.Equal(t, []byte("two"), e.Value)

		require.NoError(t, s.Delete(ctx, k))
		until(t, ch, func(e store.Entry) bool { return e.Deleted })
	})

	t.Run("WatchClosesOnCancel", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		ch, err := s.Watch(ctx, key(t, "a"))
		require.NoError(t, err)
		cancel()

		deadline := time.After(5 * time.Second)
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
			case <-deadline:
				t.Fatal("watch channel not closed after cancel")
			}
		}
	})
}

func key(t *testing.T, name string) string {
	return "storetest." + sanitize(t.Name()) + "." + name
}

func sanitize(s string) string {
	b := []byte(s)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

func next(t *testing.T, ch <-chan store.Entry) store.Entry {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event")
	}
	return store.Entry{}
}

// until drains ch until an entry matches. Backends that re-read on
// notification may repeat a revision.
func until(t *testing.T, ch <-chan store.Entry, match func(store.Entry) bool) store.Entry {
	t.Helper()
	for {
		if e := next(t, ch); match(e) {
			return e
		}
	}
}

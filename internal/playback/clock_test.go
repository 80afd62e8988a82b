package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/store/memory"
)

var zone = domain.ZoneKey{Room: "42", Zone: "room1"}

func newClock(t *testing.T, now time.Time) (*Clock, *time.Time) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	c := NewClock(st)
	cur := now
	c.now = func() time.Time { return cur }
	return c, &cur
}

func TestStartTimeFirstWriterWins(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	c, now := newClock(t, start)
	ctx := context.Background()

	got, err := c.StartTime(ctx, zone, 7)
	require.NoError(t, err)
	assert.True(t, got.Equal(start))

	*now = start.Add(30 * time.Second)
	got, err = c.StartTime(ctx, zone, 7)
	require.NoError(t, err)
	assert.True(t, got.Equal(start), "second call must return the recorded start")

	elapsed, err := c.Elapsed(ctx, zone, 7)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, elapsed)
}

func TestStartTimeConcurrent(t *testing.T) {
	c, _ := newClock(t, time.UnixMilli(1_700_000_000_000))
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got = map[int64]struct{}{}
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts, err := c.StartTime(ctx, zone, 1)
			assert.NoError(t, err)
			mu.Lock()
			got[ts.UnixMilli()] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, got, 1)
}

func TestElapsedNeverNegative(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	c, now := newClock(t, start)
	ctx := context.Background()

	_, err := c.StartTime(ctx, zone, 3)
	require.NoError(t, err)

	*now = start.Add(-5 * time.Second)
	elapsed, err := c.Elapsed(ctx, zone, 3)
	require.NoError(t, err)
	assert.Zero(t, elapsed)
}

func TestClearGivesNextTrackFreshStart(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	c, now := newClock(t, start)
	ctx := context.Background()

	_, err := c.StartTime(ctx, zone, 5)
	require.NoError(t, err)
	require.NoError(t, c.Clear(ctx, zone, 5))

	_, ok, err := c.Peek(ctx, zone, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	*now = start.Add(time.Minute)
	got, err := c.StartTime(ctx, zone, 5)
	require.NoError(t, err)
	assert.True(t, got.Equal(*now))
}

func TestZonesAreIndependent(t *testing.T) {
	c, _ := newClock(t, time.UnixMilli(1_700_000_000_000))
	ctx := context.Background()

	_, err := c.StartTime(ctx, zone, 9)
	require.NoError(t, err)

	_, ok, err := c.Peek(ctx, domain.ZoneKey{Room: "42", Zone: "room2"}, 9)
	require.NoError(t, err)
	assert.False(t, ok)
}

package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/playback"
	"github.com/needle-drop/lobby-service/internal/store"
	"github.com/needle-drop/lobby-service/internal/store/memory"
)

var zone = domain.ZoneKey{Room: "42", Zone: "room1"}

func newEngine(t *testing.T) (*Engine, store.Store) {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	return NewEngine(st, playback.NewClock(st), Options{}), st
}

func TestEngineEmptyZone(t *testing.T) {
	e, _ := newEngine(t)
	s, err := e.State(context.Background(), zone)
	require.NoError(t, err)
	assert.Zero(t, s.Revision)
	assert.Nil(t, s.Queue.Current)
	assert.True(t, s.StartedAt.IsZero())
}

func TestEngineAddValidates(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	_, _, err := e.Add(ctx, zone, "  ", "https://x")
	assert.ErrorIs(t, err, domain.ErrInvalidTrack)
	_, _, err = e.Add(ctx, zone, "title", "")
	assert.ErrorIs(t, err, domain.ErrInvalidTrack)
	_, _, err = e.Add(ctx, domain.ZoneKey{Room: "42"}, "title", "https://x")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestEngineVoteToPlayback(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	s, tr, err := e.Add(ctx, zone, "Song", "https://example.com/song")
	require.NoError(t, err)
	assert.NotZero(t, s.Revision)
	require.Len(t, s.Queue.Pending, 1)

	_, err = e.Vote(ctx, zone, "alice", tr.ID, +1)
	require.NoError(t, err)
	_, err = e.Vote(ctx, zone, "alice", tr.ID, +1)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)

	s, err = e.Vote(ctx, zone, "bob", tr.ID, +1)
	require.NoError(t, err)
	require.NotNil(t, s.Queue.Current)
	assert.Equal(t, tr.ID, s.Queue.Current.ID)
	assert.False(t, s.StartedAt.IsZero(), "a playing track has a start time")

	again, err := e.State(ctx, zone)
	require.NoError(t, err)
	assert.Equal(t, s.Revision, again.Revision)
	assert.True(t, again.StartedAt.Equal(s.StartedAt))
}

func TestEngineVotesSurviveForVoter(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	_, tr, err := e.Add(ctx, zone, "Song", "https://example.com/song")
	require.NoError(t, err)
	_, err = e.Vote(ctx, zone, "client-1", tr.ID, -1)
	require.NoError(t, err)

	v, err := e.Votes(ctx, zone, "client-1")
	require.NoError(t, err)
	assert.Equal(t, []int64{tr.ID}, v.Tracks)

	v, err = e.Votes(ctx, zone, "client-2")
	require.NoError(t, err)
	assert.Empty(t, v.Tracks)
}

func TestEngineNoopDoesNotWrite(t *testing.T) {
	e, st := newEngine(t)
	ctx := context.Background()

	s, err := e.Advance(ctx, zone, 0)
	require.NoError(t, err)
	assert.Zero(t, s.Revision)

	_, err = st.Get(ctx, zone.StoreKey())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEngineConcurrentVotesAllCounted(t *testing.T) {
	st := memory.New()
	defer st.Close()
	// два экземпляра поверх одного хранилища
	a := NewEngine(st, playback.NewClock(st), Options{Thresholds: Thresholds{PromoteAt: 100, DemoteAt: -100}, Retries: 64})
	b := NewEngine(st, playback.NewClock(st), Options{Thresholds: Thresholds{PromoteAt: 100, DemoteAt: -100}, Retries: 64})
	ctx := context.Background()

	_, tr, err := a.Add(ctx, zone, "Song", "https://example.com/song")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		eng := a
		if i%2 == 1 {
			eng = b
		}
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			_, err := eng.Vote(ctx, zone, voter, tr.ID, +1)
			assert.NoError(t, err)
		}(fmt.Sprintf("voter-%d", i))
	}
	wg.Wait()

	s, err := a.State(ctx, zone)
	require.NoError(t, err)
	require.Len(t, s.Queue.Pending, 1)
	assert.Equal(t, 20, s.Queue.Pending[0].Votes)
	assert.Len(t, s.Votes, 20)
}

func TestEngineTrackIDsUniqueAcrossInstances(t *testing.T) {
	st := memory.New()
	defer st.Close()
	opts := Options{Thresholds: Thresholds{PromoteAt: 100, DemoteAt: -100}, Retries: 1000}
	a := NewEngine(st, playback.NewClock(st), opts)
	b := NewEngine(st, playback.NewClock(st), opts)
	// оба экземпляра в одной и той же миллисекунде
	fixed := time.UnixMilli(1_700_000_000_000)
	a.now = func() time.Time { return fixed }
	b.now = func() time.Time { return fixed }
	ctx := context.Background()

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		eng := a
		if i%2 == 1 {
			eng = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, _, err := eng.Add(ctx, zone, "Song", "https://example.com/song")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	s, err := a.State(ctx, zone)
	require.NoError(t, err)
	require.Len(t, s.Queue.Pending, workers*perWorker)
	seen := make(map[int64]struct{}, len(s.Queue.Pending))
	for _, tr := range s.Queue.Pending {
		seen[tr.ID] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)

	// голос за один трек не мешает голосу за другой
	first, second := s.Queue.Pending[0].ID, s.Queue.Pending[1].ID
	_, err = a.Vote(ctx, zone, "alice", first, -1)
	require.NoError(t, err)
	_, err = b.Vote(ctx, zone, "alice", second, -1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{first, second}, mustVotes(t, a, "alice"))
}

func mustVotes(t *testing.T, e *Engine, voter string) []int64 {
	t.Helper()
	v, err := e.Votes(context.Background(), zone, voter)
	require.NoError(t, err)
	return v.Tracks
}

func TestEngineAdvanceOnceForSameTrackEnd(t *testing.T) {
	st := memory.New()
	defer st.Close()
	clock := playback.NewClock(st)
	a := NewEngine(st, clock, Options{Thresholds: Thresholds{PromoteAt: 1, DemoteAt: -1}})
	b := NewEngine(st, clock, Options{Thresholds: Thresholds{PromoteAt: 1, DemoteAt: -1}})
	ctx := context.Background()

	var first domain.Track
	for i := 0; i < 3; i++ {
		_, tr, err := a.Add(ctx, zone, fmt.Sprintf("Song %d", i), "https://example.com/song")
		require.NoError(t, err)
		_, err = a.Vote(ctx, zone, "v", tr.ID, +1)
		require.NoError(t, err)
		if i == 0 {
			first = tr
		}
	}

	s, err := a.State(ctx, zone)
	require.NoError(t, err)
	require.Equal(t, first.ID, s.Queue.Current.ID)
	require.Len(t, s.Queue.Main, 2)

	_, errA := a.Advance(ctx, zone, first.ID)
	_, errB := b.Advance(ctx, zone, first.ID)
	require.NoError(t, errA)
	assert.ErrorIs(t, errB, domain.ErrStaleAdvance)

	s, err = b.State(ctx, zone)
	require.NoError(t, err)
	assert.Len(t, s.Queue.Main, 1, "only one advance happened")

	_, ok, err := clock.Peek(ctx, zone, first.ID)
	require.NoError(t, err)
	assert.False(t, ok, "clock of the finished track is cleared")
}

func TestEngineWatchSeesOtherInstance(t *testing.T) {
	st := memory.New()
	defer st.Close()
	a := NewEngine(st, playback.NewClock(st), Options{})
	b := NewEngine(st, playback.NewClock(st), Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := b.Watch(ctx, zone)
	require.NoError(t, err)

	written, _, err := a.Add(ctx, zone, "Song", "https://example.com/song")
	require.NoError(t, err)

	var rep Replica
	select {
	case s := <-updates:
		assert.True(t, rep.Apply(s))
		assert.Equal(t, written.Revision, s.Revision)
		require.Len(t, s.Queue.Pending, 1)
		assert.Equal(t, "Song", s.Queue.Pending[0].Title)
	case <-time.After(2 * time.Second):
		t.Fatal("no update from the other instance")
	}

	cancel()
	for range updates {
	}
}

func TestEngineElapsed(t *testing.T) {
	e, _ := newEngine(t)
	start := time.UnixMilli(1_700_000_000_000)
	e.now = func() time.Time { return start.Add(42 * time.Second) }

	assert.Equal(t, 42*time.Second, e.Elapsed(State{StartedAt: start}))
	assert.Zero(t, e.Elapsed(State{}))
}

// Package queue implements the per-zone collaborative queue: a pure state
// machine over Record plus an Engine that persists it through a versioned
// store. Every write is a compare-and-set on the revision it was computed
// from; a lost race re-reads and re-applies the command.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/playback"
	"github.com/needle-drop/lobby-service/internal/store"
)

var ErrContention = errors.New("queue: too many concurrent writers")

// State is one revision of a zone's record as read from the store.
type State struct {
	Key      domain.ZoneKey
	Revision uint64
	Record
	// StartedAt is when Current started playing, zero if nothing plays.
	StartedAt time.Time
}

type Options struct {
	Thresholds Thresholds
	// Retries bounds compare-and-set attempts per command.
	Retries int
}

type Engine struct {
	st      store.Store
	clock   *playback.Clock
	th      Thresholds
	retries int
	now     func() time.Time
}

func NewEngine(st store.Store, clock *playback.Clock, opts Options) *Engine {
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	if opts.Retries <= 0 {
		opts.Retries = 8
	}
	return &Engine{
		st:      st,
		clock:   clock,
		th:      opts.Thresholds,
		retries: opts.Retries,
		now:     time.Now,
	}
}

func (e *Engine) Thresholds() Thresholds { return e.th }

// State reads the zone. A zone nobody wrote to yet is empty at revision 0.
func (e *Engine) State(ctx context.Context, key domain.ZoneKey) (State, error) {
	s, err := e.load(ctx, key)
	if err != nil {
		return State{}, err
	}
	if err := e.attachClock(ctx, &s); err != nil {
		return State{}, err
	}
	return s, nil
}

// Votes returns the pending tracks voter already voted on in key.
func (e *Engine) Votes(ctx context.Context, key domain.ZoneKey, voter string) (domain.VoteRecord, error) {
	s, err := e.load(ctx, key)
	if err != nil {
		return domain.VoteRecord{}, err
	}
	return s.VotedBy(voter), nil
}

// Add submits a new candidate into the pending queue. The id comes from the
// zone record, so writers on other instances never reuse it.
func (e *Engine) Add(ctx context.Context, key domain.ZoneKey, title, url string) (State, domain.Track, error) {
	t := domain.Track{
		Title: strings.TrimSpace(title),
		URL:   strings.TrimSpace(url),
	}
	if t.Title == "" || t.URL == "" {
		return State{}, domain.Track{}, domain.ErrInvalidTrack
	}
	s, err := e.mutate(ctx, key, func(r *Record) error {
		t.ID = r.NextTrackID(e.now().UnixMilli())
		r.Add(t)
		return nil
	})
	return s, t, err
}

func (e *Engine) Vote(ctx context.Context, key domain.ZoneKey, voter string, trackID int64, delta int) (State, error) {
	if voter == "" {
		return State{}, domain.ErrNotInRoom
	}
	return e.mutate(ctx, key, func(r *Record) error {
		return r.Vote(voter, trackID, delta, e.th)
	})
}

// Advance ends expected (or whatever plays when expected is 0) and starts
// the next track.
func (e *Engine) Advance(ctx context.Context, key domain.ZoneKey, expected int64) (State, error) {
	return e.mutate(ctx, key, func(r *Record) error {
		return r.Advance(expected)
	})
}

// Watch streams every revision of key written after the call, decoded.
// The channel closes with ctx.
func (e *Engine) Watch(ctx context.Context, key domain.ZoneKey) (<-chan State, error) {
	entries, err := e.st.Watch(ctx, key.StoreKey())
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", key, err)
	}

	out := make(chan State, 1)
	go func() {
		defer close(out)
		for ent := range entries {
			if ent.Deleted {
				continue
			}
			s, err := decode(key, ent)
			if err != nil {
				slog.Warn("queue: undecodable record", "zone", key.String(), "revision", ent.Revision, "err", err)
				continue
			}
			if err := e.attachClock(ctx, &s); err != nil && ctx.Err() == nil {
				slog.Debug("queue: clock lookup failed", "zone", key.String(), "err", err)
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// mutate applies fn to the latest record and writes it back if it changed.
// Domain errors from fn leave the store untouched and are returned with the
// state fn saw.
func (e *Engine) mutate(ctx context.Context, key domain.ZoneKey, fn func(*Record) error) (State, error) {
	if !key.Valid() {
		return State{}, domain.ErrRoomNotFound
	}
	for attempt := 0; attempt < e.retries; attempt++ {
		cur, err := e.load(ctx, key)
		if err != nil {
			return State{}, err
		}
		next := cur
		next.Record = cur.Record.Clone()
		if err := fn(&next.Record); err != nil {
			_ = e.attachClock(ctx, &cur)
			return cur, err
		}

		before, err := json.Marshal(cur.Record)
		if err != nil {
			return State{}, fmt.Errorf("encode %s: %w", key, err)
		}
		data, err := json.Marshal(next.Record)
		if err != nil {
			return State{}, fmt.Errorf("encode %s: %w", key, err)
		}
		if bytes.Equal(data, before) {
			_ = e.attachClock(ctx, &cur)
			return cur, nil
		}

		var rev uint64
		if cur.Revision == 0 {
			rev, err = e.st.Create(ctx, key.StoreKey(), data)
		} else {
			rev, err = e.st.Update(ctx, key.StoreKey(), data, cur.Revision)
		}
		if errors.Is(err, store.ErrExists) || errors.Is(err, store.ErrConflict) {
			slog.Debug("queue: write lost race, retrying", "zone", key.String(), "attempt", attempt+1)
			continue
		}
		if err != nil {
			return State{}, fmt.Errorf("write %s: %w", key, err)
		}

		next.Revision = rev
		e.syncClock(ctx, key, cur.Queue.Current, &next)
		return next, nil
	}
	return State{}, fmt.Errorf("%s: %w", key, ErrContention)
}

// syncClock clears the start time of a track that stopped being current and
// records one for the track that replaced it.
func (e *Engine) syncClock(ctx context.Context, key domain.ZoneKey, prev *domain.Track, s *State) {
	if e.clock == nil {
		return
	}
	cur := s.Queue.Current
	if prev != nil && (cur == nil || cur.ID != prev.ID) {
		if err := e.clock.Clear(ctx, key, prev.ID); err != nil {
			slog.Warn("queue: clear clock failed", "zone", key.String(), "track", prev.ID, "err", err)
		}
	}
	if err := e.attachClock(ctx, s); err != nil {
		slog.Warn("queue: start clock failed", "zone", key.String(), "err", err)
	}
}

func (e *Engine) attachClock(ctx context.Context, s *State) error {
	s.StartedAt = time.Time{}
	if e.clock == nil || s.Queue.Current == nil {
		return nil
	}
	t, err := e.clock.StartTime(ctx, s.Key, s.Queue.Current.ID)
	if err != nil {
		return err
	}
	s.StartedAt = t
	return nil
}

// Elapsed is how far into the current track the zone is.
func (e *Engine) Elapsed(s State) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return playback.Since(s.StartedAt, e.now())
}

func (e *Engine) load(ctx context.Context, key domain.ZoneKey) (State, error) {
	ent, err := e.st.Get(ctx, key.StoreKey())
	if errors.Is(err, store.ErrNotFound) {
		return State{Key: key}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read %s: %w", key, err)
	}
	return decode(key, ent)
}

func decode(key domain.ZoneKey, ent store.Entry) (State, error) {
	s := State{Key: key, Revision: ent.Revision}
	if err := json.Unmarshal(ent.Value, &s.Record); err != nil {
		return State{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return s, nil
}

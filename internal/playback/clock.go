// Package playback records when a track instance started playing so that
// late joiners can seek to the shared offset. Times are plain wall clock;
// skew between machines is not corrected.
package playback

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/needle-drop/lobby-service/internal/domain"
	"github.com/needle-drop/lobby-service/internal/store"
)

type Clock struct {
	st  store.Store
	now func() time.Time
}

func NewClock(st store.Store) *Clock {
	return &Clock{st: st, now: time.Now}
}

// StartTime возвращает записанное время старта трека, а если его нет —
// записывает текущее. Из нескольких конкурентных вызовов побеждает первый.
func (c *Clock) StartTime(ctx context.Context, key domain.ZoneKey, trackID int64) (time.Time, error) {
	k := key.ClockKey(trackID)
	for attempt := 0; attempt < 3; attempt++ {
		if t, ok, err := c.read(ctx, k); err != nil || ok {
			return t, err
		}

		now := c.now().Truncate(time.Millisecond)
		_, err := c.st.Create(ctx, k, []byte(strconv.FormatInt(now.UnixMilli(), 10)))
		switch {
		case err == nil:
			return now, nil
		case errors.Is(err, store.ErrExists):
			continue
		default:
			return time.Time{}, fmt.Errorf("init clock %s: %w", k, err)
		}
	}
	return time.Time{}, fmt.Errorf("init clock %s: %w", k, store.ErrConflict)
}

// Peek returns the recorded start time without initialising it.
func (c *Clock) Peek(ctx context.Context, key domain.ZoneKey, trackID int64) (time.Time, bool, error) {
	return c.read(ctx, key.ClockKey(trackID))
}

// Elapsed is now minus the start time, never negative.
func (c *Clock) Elapsed(ctx context.Context, key domain.ZoneKey, trackID int64) (time.Duration, error) {
	start, err := c.StartTime(ctx, key, trackID)
	if err != nil {
		return 0, err
	}
	return Since(start, c.now()), nil
}

func (c *Clock) Clear(ctx context.Context, key domain.ZoneKey, trackID int64) error {
	if err := c.st.Delete(ctx, key.ClockKey(trackID)); err != nil {
		return fmt.Errorf("clear clock: %w", err)
	}
	return nil
}

func Since(start, now time.Time) time.Duration {
	if d := now.Sub(start); d > 0 {
		return d
	}
	return 0
}

func (c *Clock) read(ctx context.Context, k string) (time.Time, bool, error) {
	e, err := c.st.Get(ctx, k)
	if errors.Is(err, store.ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read clock %s: %w", k, err)
	}
	ms, err := strconv.ParseInt(string(e.Value), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode clock %s: %w", k, err)
	}
	return time.UnixMilli(ms), true, nil
}

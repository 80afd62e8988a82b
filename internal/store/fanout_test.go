package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFanoutKeepsNewest(t *testing.T) {
	f := NewFanout()
	ch := f.Subscribe("k")
	for i := uint64(1); i <= 20; i++ {
		f.Publish(Entry{Key: "k", Revision: i})
	}

	var last uint64
	for len(ch) > 0 {
		last = (<-ch).Revision
	}
	assert.Equal(t, uint64(20), last)
}

func TestFanoutOtherKeysIgnored(t *testing.T) {
	f := NewFanout()
	ch := f.Subscribe("a")
	f.Publish(Entry{Key: "b", Revision: 1})
	assert.Len(t, ch, 0)
}

func TestFanoutWatchCancel(t *testing.T) {
	f := NewFanout()
	ctx, cancel := context.WithCancel(context.Background())
	ch := f.Watch(ctx, "k")
	assert.True(t, f.Has("k"))
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.False(t, f.Has("k"))
}

func TestFanoutCloseAllThenUnsubscribe(t *testing.T) {
	f := NewFanout()
	ch := f.Subscribe("k")
	f.CloseAll()
	f.Unsubscribe("k", ch)
	_, ok := <-ch
	assert.False(t, ok)
}

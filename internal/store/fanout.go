package store

import (
	"context"
	"sync"
)

// Fanout multiplexes change notifications to per-key watchers. Backends
// with a single upstream subscription share it through one Fanout.
type Fanout struct {
	mu   sync.Mutex
	subs map[string]map[chan Entry]struct{}
}

func NewFanout() *Fanout {
	return &Fanout{subs: make(map[string]map[chan Entry]struct{})}
}

func (f *Fanout) Subscribe(key string) chan Entry {
	ch := make(chan Entry, 8)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs[key] == nil {
		f.subs[key] = make(map[chan Entry]struct{})
	}
	f.subs[key][ch] = struct{}{}
	return ch
}

// Watch subscribes key until ctx is done.
func (f *Fanout) Watch(ctx context.Context, key string) <-chan Entry {
	ch := f.Subscribe(key)
	go func() {
		<-ctx.Done()
		f.Unsubscribe(key, ch)
	}()
	return ch
}

func (f *Fanout) Unsubscribe(key string, ch chan Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if subs, ok := f.subs[key]; ok {
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subs, key)
		}
	}
}

func (f *Fanout) Has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[key]) > 0
}

// Publish never blocks. A full watcher loses its oldest pending entry so
// the newest one always gets through.
func (f *Fanout) Publish(e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[e.Key] {
		for {
			select {
			case ch <- e:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (f *Fanout) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, subs := range f.subs {
		for ch := range subs {
			close(ch)
		}
		delete(f.subs, key)
	}
}

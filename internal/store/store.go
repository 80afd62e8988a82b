// Package store defines the versioned key/value contract the queue engine
// and the playback clock replicate through. Every write is stamped with a
// revision that only grows; Update is a compare-and-set on that revision.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("store: key not found")
	ErrExists   = errors.New("store: key already exists")
	ErrConflict = errors.New("store: revision conflict")
	ErrClosed   = errors.New("store: closed")
)

type Entry struct {
	Key      string
	Value    []byte
	Revision uint64
	// Deleted marks a watch notification for a removed key.
	Deleted bool
}

type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	// Create writes key only if it does not exist yet.
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	// Update writes key only if its current revision equals revision. A
	// missing key is reported as ErrConflict.
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
	Delete(ctx context.Context, key string) error
	// Watch streams changes to key made after the call returns. The channel
	// is closed when ctx is done. Slow readers may miss intermediate
	// revisions but always observe the latest one.
	Watch(ctx context.Context, key string) (<-chan Entry, error)
	Close() error
}

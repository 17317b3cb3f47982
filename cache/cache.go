// Package cache defines the volatile tier consumed by the strategy
// engine: a TTL-based key→value store that can be backed by Redis,
// memory, or any other KV store.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a key that is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Store is the contract the engine sequences calls against. Backends
// are expected to provide their own internal concurrency safety.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Flusher is implemented by stores that can drop every entry at once.
// The comparison runner uses it to level the field between strategies.
type Flusher interface {
	Flush(ctx context.Context) error
}

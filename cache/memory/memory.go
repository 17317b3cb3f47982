// Package memory provides an in-process cache.Store with per-entry TTL
// expiry. It backs tests and acts as a fallback when no Redis server is
// configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kabilaymen/caching-demo/cache"
)

type entry struct {
	value     []byte
	expiresAt time.Time
	hasExpiry bool
}

// Store is a concurrency-safe TTL key→value map. Expired entries are
// dropped lazily on read and swept by an optional background janitor.
type Store struct {
	mu      sync.RWMutex
	items   map[string]entry
	stop    chan struct{}
	stopped sync.Once
}

var (
	_ cache.Store   = (*Store)(nil)
	_ cache.Flusher = (*Store)(nil)
)

// NewStore builds a memory store. A positive cleanupInterval starts a
// janitor goroutine; Close stops it.
func NewStore(cleanupInterval time.Duration) *Store {
	s := &Store{
		items: make(map[string]entry),
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.janitor(cleanupInterval)
	}
	return s
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, cache.ErrNotFound
	}
	if e.hasExpiry && time.Now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
		e.hasExpiry = true
	}
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	_, ok := s.items[key]
	delete(s.items, key)
	s.mu.Unlock()
	if !ok {
		return cache.ErrNotFound
	}
	return nil
}

// Flush drops every entry.
func (s *Store) Flush(context.Context) error {
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
	return nil
}

// Close stops the janitor, if any. Safe to call multiple times.
func (s *Store) Close() {
	s.stopped.Do(func() { close(s.stop) })
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, e := range s.items {
				if e.hasExpiry && now.After(e.expiresAt) {
					delete(s.items, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

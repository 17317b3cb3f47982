// Package redis implements cache.Store over the Redis RESP protocol
// with a small connection pool. Entries are written with millisecond
// TTLs via SET ... PX.
package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"time"

	"github.com/kabilaymen/caching-demo/cache"
)

// Store implements cache.Store backed by a Redis server.
type Store struct {
	opts   Options
	dialFn dialFunc
	pool   chan *conn
}

var (
	_ cache.Store   = (*Store)(nil)
	_ cache.Flusher = (*Store)(nil)
)

// NewStore builds a Redis-backed cache store.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	return &Store{opts: cfg, dialFn: defaultDial, pool: make(chan *conn, cfg.PoolSize)}
}

// WithDial overrides the dialer; tests use it to script the server side.
func (s *Store) WithDial(fn dialFunc) {
	if fn != nil {
		s.dialFn = fn
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := s.do(ctx, func(c *conn) error {
		reply, err := s.roundTrip(c, "GET", key)
		if err != nil {
			return err
		}
		switch v := reply.(type) {
		case nil:
			return cache.ErrNotFound
		case []byte:
			payload = append([]byte(nil), v...)
			return nil
		default:
			return fmt.Errorf("redis: unexpected GET reply %T", reply)
		}
	})
	return payload, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.do(ctx, func(c *conn) error {
		args := []string{"SET", key, string(value)}
		if ttl > 0 {
			ms := ttl.Milliseconds()
			if ms == 0 {
				ms = 1
			}
			args = append(args, "PX", strconv.FormatInt(ms, 10))
		}
		reply, err := s.roundTrip(c, args...)
		if err != nil {
			return err
		}
		return expectOK(reply, "SET")
	})
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.do(ctx, func(c *conn) error {
		reply, err := s.roundTrip(c, "DEL", key)
		if err != nil {
			return err
		}
		if n, ok := reply.(int64); ok {
			if n == 0 {
				return cache.ErrNotFound
			}
			return nil
		}
		return fmt.Errorf("redis: unexpected DEL reply %T", reply)
	})
}

// Flush removes every key from the selected database.
func (s *Store) Flush(ctx context.Context) error {
	return s.do(ctx, func(c *conn) error {
		reply, err := s.roundTrip(c, "FLUSHDB")
		if err != nil {
			return err
		}
		return expectOK(reply, "FLUSHDB")
	})
}

// Ping verifies connectivity at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, func(c *conn) error {
		reply, err := s.roundTrip(c, "PING")
		if err != nil {
			return err
		}
		if msg, ok := reply.(string); ok && strings.EqualFold(msg, "PONG") {
			return nil
		}
		return fmt.Errorf("redis: unexpected PING reply %v", reply)
	})
}

func (s *Store) do(ctx context.Context, fn func(*conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	broken := false
	defer func() { s.release(c, broken) }()
	if err := fn(c); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
			broken = true
		}
		return err
	}
	return nil
}

func expectOK(reply any, cmd string) error {
	if msg, ok := reply.(string); ok && strings.EqualFold(msg, "OK") {
		return nil
	}
	return fmt.Errorf("redis: %s failed: %v", cmd, reply)
}

// Package strategy implements the five cache-consistency algorithms
// coordinating the volatile cache with the durable store. The store is
// the source of truth; the cache may be stale or absent but never holds
// a record under a foreign id.
package strategy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kabilaymen/caching-demo/cache"
	"github.com/kabilaymen/caching-demo/metrics"
	"github.com/kabilaymen/caching-demo/product"
	"github.com/kabilaymen/caching-demo/store"
	"github.com/kabilaymen/caching-demo/writeback"
)

var (
	// ErrNotFound reports an id with no record in either tier.
	ErrNotFound = errors.New("strategy: record not found")
	// ErrCacheUnavailable reports a cache failure on write-back's
	// synchronous path, the one strategy where the cache write is load
	// bearing.
	ErrCacheUnavailable = errors.New("strategy: cache unavailable")
)

// DefaultTTL is applied to cache entries when none is configured.
const DefaultTTL = time.Hour

// Config wires the engine dependencies. Cache, Store, and Metrics are
// required; Pipeline is only needed for write-back writes.
type Config struct {
	Cache    cache.Store
	Store    store.ProductStore
	Metrics  *metrics.Collector
	Pipeline *writeback.Pipeline
	Logger   *zap.Logger
	TTL      time.Duration
}

// Engine dispatches reads and writes to the strategy-specific
// algorithms, recording latency and hit/miss counts throughout.
type Engine struct {
	cache    cache.Store
	store    store.ProductStore
	metrics  *metrics.Collector
	pipeline *writeback.Pipeline
	log      *zap.Logger
	ttl      time.Duration
}

// NewEngine builds an engine from the config.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Cache == nil {
		return nil, errors.New("strategy: cache store is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("strategy: product store is required")
	}
	if cfg.Metrics == nil {
		return nil, errors.New("strategy: metrics collector is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Engine{
		cache:    cfg.Cache,
		store:    cfg.Store,
		metrics:  cfg.Metrics,
		pipeline: cfg.Pipeline,
		log:      cfg.Logger,
		ttl:      cfg.TTL,
	}, nil
}

func cacheKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// Read returns the record for id. Every strategy shares the lookaside
// algorithm: cache first, store on miss, best-effort repopulation.
func (e *Engine) Read(ctx context.Context, id int64, s Strategy) (product.Product, error) {
	if _, err := Parse(string(s)); err != nil {
		return product.Product{}, err
	}
	start := time.Now()
	p, err := e.readLookaside(ctx, id)
	e.metrics.RecordLatency(string(s), "read", time.Since(start))
	return p, err
}

// Write stores the record according to the strategy's write algorithm.
// The record is validated before any cache or store interaction.
func (e *Engine) Write(ctx context.Context, p product.Product, s Strategy) (product.Product, error) {
	if err := p.Validate(); err != nil {
		return product.Product{}, err
	}

	start := time.Now()
	var err error
	switch s {
	case CacheAside, ReadThrough:
		err = e.writeInvalidate(ctx, p, s)
	case WriteThrough:
		err = e.writeThrough(ctx, p)
	case WriteAround:
		err = e.upsert(ctx, p)
	case WriteBack:
		err = e.writeBack(ctx, p)
	default:
		return product.Product{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
	e.metrics.RecordLatency(string(s), "write", time.Since(start))

	if err != nil {
		return product.Product{}, err
	}
	return p, nil
}

// readLookaside implements the shared read path. Any cache-side failure
// degrades to a miss; store failures propagate.
func (e *Engine) readLookaside(ctx context.Context, id int64) (product.Product, error) {
	key := cacheKey(id)

	raw, err := e.cache.Get(ctx, key)
	switch {
	case err == nil:
		var p product.Product
		if uerr := json.Unmarshal(raw, &p); uerr == nil {
			e.metrics.RecordHit()
			return p, nil
		}
		// Undecodable entry: invalidate so the next read repopulates,
		// then fall through to the store as a miss.
		e.log.Error("corrupt cache entry, invalidating", zap.String("key", key))
		if derr := e.cache.Delete(ctx, key); derr != nil && !errors.Is(derr, cache.ErrNotFound) {
			e.log.Warn("cache invalidation failed", zap.String("key", key), zap.Error(derr))
		}
	case errors.Is(err, cache.ErrNotFound):
	default:
		e.log.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
	}
	e.metrics.RecordMiss()

	e.metrics.RecordStoreRead()
	p, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return product.Product{}, ErrNotFound
		}
		return product.Product{}, fmt.Errorf("strategy: store read: %w", err)
	}

	e.populate(ctx, p)
	return p, nil
}

// populate refreshes the cache after a store hit. Failures are logged,
// never propagated.
func (e *Engine) populate(ctx context.Context, p product.Product) {
	raw, err := json.Marshal(p)
	if err != nil {
		e.log.Error("cache populate encode failed", zap.Int64("id", p.ID), zap.Error(err))
		return
	}
	if err := e.cache.Set(ctx, cacheKey(p.ID), raw, e.ttl); err != nil {
		e.log.Warn("cache populate failed", zap.Int64("id", p.ID), zap.Error(err))
	}
}

// upsert is the synchronous durable write shared by every strategy but
// write-back. Store failures abort the write and surface to the caller.
func (e *Engine) upsert(ctx context.Context, p product.Product) error {
	e.metrics.RecordStoreWrite()
	if _, err := e.store.Upsert(ctx, p); err != nil {
		return fmt.Errorf("strategy: store upsert: %w", err)
	}
	return nil
}

// writeInvalidate persists to the store, then drops the cache entry so
// the next read repopulates. A failed upsert leaves the cache untouched.
func (e *Engine) writeInvalidate(ctx context.Context, p product.Product, s Strategy) error {
	if err := e.upsert(ctx, p); err != nil {
		return err
	}
	key := cacheKey(p.ID)
	if err := e.cache.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotFound) {
		e.log.Warn("cache invalidation failed after store write",
			zap.String("strategy", string(s)), zap.String("key", key), zap.Error(err))
	}
	return nil
}

// writeThrough persists to the store and refreshes the cache. Once the
// store write succeeded the operation is successful; a cache-side
// failure only degrades future read latency.
func (e *Engine) writeThrough(ctx context.Context, p product.Product) error {
	if err := e.upsert(ctx, p); err != nil {
		return err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		e.log.Error("write-through cache encode failed", zap.Int64("id", p.ID), zap.Error(err))
		return nil
	}
	if err := e.cache.Set(ctx, cacheKey(p.ID), raw, e.ttl); err != nil {
		e.log.Warn("write-through cache set failed after store write",
			zap.Int64("id", p.ID), zap.Error(err))
	}
	return nil
}

// writeBack puts the record in the cache and queues the durable write.
// The cache is on the synchronous critical path here, so its failure is
// a hard error. An enqueue failure rolls back the cache entry so no
// record claims freshness while never reaching the store.
func (e *Engine) writeBack(ctx context.Context, p product.Product) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrCacheUnavailable, err)
	}
	key := cacheKey(p.ID)
	if err := e.cache.Set(ctx, key, raw, e.ttl); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}

	var enqErr error
	if e.pipeline == nil {
		enqErr = writeback.ErrNotRunning
	} else {
		enqErr = e.pipeline.Enqueue(p)
	}
	if enqErr != nil {
		if derr := e.cache.Delete(ctx, key); derr != nil && !errors.Is(derr, cache.ErrNotFound) {
			e.log.Error("failed to roll back cache entry after enqueue failure",
				zap.String("key", key), zap.Error(derr))
		}
		return fmt.Errorf("strategy: write-back enqueue: %w", enqErr)
	}
	return nil
}

// Command cachedemo serves the caching-strategy demo API backed by
// PostgreSQL and Redis (or an in-process cache when no Redis address is
// configured).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kabilaymen/caching-demo/api"
	"github.com/kabilaymen/caching-demo/cache"
	"github.com/kabilaymen/caching-demo/cache/memory"
	"github.com/kabilaymen/caching-demo/cache/redis"
	"github.com/kabilaymen/caching-demo/metrics"
	"github.com/kabilaymen/caching-demo/metrics/promexport"
	"github.com/kabilaymen/caching-demo/sim"
	"github.com/kabilaymen/caching-demo/store/postgres"
	"github.com/kabilaymen/caching-demo/strategy"
	"github.com/kabilaymen/caching-demo/writeback"
)

func main() {
	var (
		addr       = flag.String("addr", envOr("CACHEDEMO_ADDR", ":8080"), "HTTP listen address")
		dsn        = flag.String("postgres", envOr("CACHEDEMO_POSTGRES_DSN", ""), "PostgreSQL DSN (required)")
		redisAddr  = flag.String("redis", envOr("CACHEDEMO_REDIS_ADDR", "127.0.0.1:6379"), "Redis address; empty selects the in-process cache")
		redisDB    = flag.Int("redis-db", 0, "Redis database index")
		ttl        = flag.Duration("ttl", time.Hour, "cache entry TTL")
		maxPending = flag.Int("max-pending", 0, "write-back queue bound, 0 for unbounded")
		dev        = flag.Bool("dev", false, "development logging")
	)
	flag.Parse()

	log, err := buildLogger(*dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(log, *addr, *dsn, *redisAddr, *redisDB, *ttl, *maxPending); err != nil {
		log.Fatal("cachedemo exited", zap.Error(err))
	}
}

func run(log *zap.Logger, addr, dsn, redisAddr string, redisDB int, ttl time.Duration, maxPending int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(postgres.WithDSN(dsn))
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	repo := postgres.NewProductRepository(db)
	log.Info("database initialized")

	cacheStore := buildCache(ctx, log, redisAddr, redisDB)

	collector := metrics.NewCollector(strategy.Names()...)

	pipeline := writeback.New(repo, collector, log.Named("writeback"), writeback.Options{MaxPending: maxPending})
	pipeline.Start()

	engine, err := strategy.NewEngine(strategy.Config{
		Cache:    cacheStore,
		Store:    repo,
		Metrics:  collector,
		Pipeline: pipeline,
		Logger:   log.Named("engine"),
		TTL:      ttl,
	})
	if err != nil {
		return err
	}

	flusher, _ := cacheStore.(cache.Flusher)
	runner, err := sim.NewRunner(sim.RunnerConfig{
		Engine:   engine,
		Metrics:  collector,
		Pipeline: pipeline,
		Flusher:  flusher,
		Resetter: repo,
		Logger:   log.Named("sim"),
	})
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(promexport.NewExporter(collector))

	handler := api.NewHandler(api.HandlerConfig{
		Engine:   engine,
		Metrics:  collector,
		Runner:   runner,
		Store:    repo,
		Gatherer: registry,
		Logger:   log.Named("api"),
	})
	server := api.NewServer(handler, api.WithAddress(addr))

	log.Info("serving", zap.String("addr", addr))
	err = server.Start(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if stopErr := pipeline.Stop(10 * time.Second); stopErr != nil {
		log.Warn("write-back pipeline stop", zap.Error(stopErr))
	}
	return err
}

func buildCache(ctx context.Context, log *zap.Logger, redisAddr string, redisDB int) cache.Store {
	if redisAddr == "" {
		log.Info("no Redis address configured, using in-process cache")
		return memory.NewStore(time.Minute)
	}
	rs := redis.NewStore(redis.Options{Addr: redisAddr, DB: redisDB})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		// The engine treats cache failures as misses, so a dead Redis
		// degrades rather than blocks startup.
		log.Error("could not reach Redis", zap.String("addr", redisAddr), zap.Error(err))
	} else {
		log.Info("connected to Redis", zap.String("addr", redisAddr))
	}
	return rs
}

func buildLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

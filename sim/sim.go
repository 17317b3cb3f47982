// Package sim drives synthetic read/write workloads through the
// strategy engine so strategies can be measured and compared under the
// same mix.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/kabilaymen/caching-demo/cache"
	"github.com/kabilaymen/caching-demo/metrics"
	"github.com/kabilaymen/caching-demo/product"
	"github.com/kabilaymen/caching-demo/store"
	"github.com/kabilaymen/caching-demo/strategy"
	"github.com/kabilaymen/caching-demo/writeback"
)

// Config describes one workload: Writes distinct records interleaved at
// random with Reads lookups of random ids from the same range. Seed 0
// derives a seed from the clock.
type Config struct {
	Reads  int   `json:"reads"`
	Writes int   `json:"writes"`
	Seed   int64 `json:"seed,omitempty"`
}

// Result is the outcome of one strategy run.
type Result struct {
	Strategy         string           `json:"strategy"`
	RequestedReads   int              `json:"requested_reads"`
	RequestedWrites  int              `json:"requested_writes"`
	SuccessfulReads  int              `json:"successful_reads"`
	SuccessfulWrites int              `json:"successful_writes"`
	Metrics          metrics.Snapshot `json:"metrics"`
}

// CompareConfig runs the same workload once per strategy. ResetStore
// truncates the durable store between runs; the cache is always flushed
// so no strategy inherits another's entries.
type CompareConfig struct {
	Reads      int   `json:"reads"`
	Writes     int   `json:"writes"`
	ResetStore bool  `json:"reset_store"`
	Seed       int64 `json:"seed,omitempty"`
}

// RunnerConfig wires the runner. Flusher and Resetter are optional;
// without them Compare skips the corresponding cleanup.
type RunnerConfig struct {
	Engine       *strategy.Engine
	Metrics      *metrics.Collector
	Pipeline     *writeback.Pipeline
	Flusher      cache.Flusher
	Resetter     store.Resetter
	Logger       *zap.Logger
	DrainTimeout time.Duration
}

// Runner executes workloads against one engine.
type Runner struct {
	engine       *strategy.Engine
	metrics      *metrics.Collector
	pipeline     *writeback.Pipeline
	flusher      cache.Flusher
	resetter     store.Resetter
	log          *zap.Logger
	drainTimeout time.Duration
}

// NewRunner builds a runner; Engine and Metrics are required.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Engine == nil {
		return nil, errors.New("sim: engine is required")
	}
	if cfg.Metrics == nil {
		return nil, errors.New("sim: metrics collector is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	return &Runner{
		engine:       cfg.Engine,
		metrics:      cfg.Metrics,
		pipeline:     cfg.Pipeline,
		flusher:      cfg.Flusher,
		resetter:     cfg.Resetter,
		log:          cfg.Logger,
		drainTimeout: cfg.DrainTimeout,
	}, nil
}

// Run resets the metrics, executes the shuffled workload with the given
// strategy, and returns the resulting snapshot. For write-back the
// pipeline is drained before the snapshot so deferred writes are
// counted.
func (r *Runner) Run(ctx context.Context, s strategy.Strategy, cfg Config) (Result, error) {
	if _, err := strategy.Parse(string(s)); err != nil {
		return Result{}, err
	}
	if cfg.Reads < 0 || cfg.Writes < 0 {
		return Result{}, errors.New("sim: reads and writes must not be negative")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	jobs := writeJobs(cfg.Writes)
	ops := shuffledOps(rng, cfg.Reads, cfg.Writes)

	r.log.Info("starting simulation",
		zap.String("strategy", string(s)),
		zap.Int("reads", cfg.Reads),
		zap.Int("writes", cfg.Writes))
	r.metrics.Reset()

	result := Result{
		Strategy:        string(s),
		RequestedReads:  cfg.Reads,
		RequestedWrites: cfg.Writes,
	}
	idRange := cfg.Writes
	if idRange < 1 {
		idRange = 1
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if op == 'w' {
			job := jobs[0]
			jobs = jobs[1:]
			if _, err := r.engine.Write(ctx, job, s); err != nil {
				r.log.Warn("simulation write failed",
					zap.String("strategy", string(s)), zap.Int64("id", job.ID), zap.Error(err))
				continue
			}
			result.SuccessfulWrites++
		} else {
			id := int64(rng.Intn(idRange) + 1)
			if _, err := r.engine.Read(ctx, id, s); err != nil && !errors.Is(err, strategy.ErrNotFound) {
				r.log.Warn("simulation read failed",
					zap.String("strategy", string(s)), zap.Int64("id", id), zap.Error(err))
				continue
			}
			result.SuccessfulReads++
		}
	}

	if s == strategy.WriteBack && r.pipeline != nil {
		drainCtx, cancel := context.WithTimeout(ctx, r.drainTimeout)
		defer cancel()
		if err := r.pipeline.Drain(drainCtx); err != nil {
			r.log.Warn("write-back queue did not drain within timeout", zap.Error(err))
		}
	}

	result.Metrics = r.metrics.Snapshot()
	r.log.Info("simulation finished",
		zap.String("strategy", string(s)),
		zap.Int("successful_reads", result.SuccessfulReads),
		zap.Int("successful_writes", result.SuccessfulWrites))
	return result, nil
}

// Compare runs the workload once per strategy against a leveled field.
func (r *Runner) Compare(ctx context.Context, cfg CompareConfig) (map[string]Result, error) {
	results := make(map[string]Result, len(strategy.All()))
	for _, s := range strategy.All() {
		if cfg.ResetStore && r.resetter != nil {
			if err := r.resetter.Reset(ctx); err != nil {
				return nil, fmt.Errorf("sim: reset store before %s: %w", s, err)
			}
		}
		if r.flusher != nil {
			if err := r.flusher.Flush(ctx); err != nil {
				return nil, fmt.Errorf("sim: flush cache before %s: %w", s, err)
			}
		}

		result, err := r.Run(ctx, s, Config{Reads: cfg.Reads, Writes: cfg.Writes, Seed: cfg.Seed})
		if err != nil {
			return nil, err
		}
		results[string(s)] = result
	}
	return results, nil
}

// writeJobs builds the deterministic records a workload writes.
func writeJobs(n int) []product.Product {
	jobs := make([]product.Product, n)
	for i := range jobs {
		id := int64(i + 1)
		jobs[i] = product.Product{
			ID:          id,
			Name:        fmt.Sprintf("Simulated Product %d", id),
			Price:       100.0 + float64(id)*10 + float64(i)*0.1,
			Description: fmt.Sprintf("Simulated description update %d for product %d", i+1, id),
		}
	}
	return jobs
}

func shuffledOps(rng *rand.Rand, reads, writes int) []byte {
	ops := make([]byte, 0, reads+writes)
	for i := 0; i < writes; i++ {
		ops = append(ops, 'w')
	}
	for i := 0; i < reads; i++ {
		ops = append(ops, 'r')
	}
	rng.Shuffle(len(ops), func(i, j int) { ops[i], ops[j] = ops[j], ops[i] })
	return ops
}

// Package writeback runs the deferred-persistence half of the
// write-back strategy: a FIFO queue of records already accepted into
// the cache, drained into the durable store by a single background
// worker.
//
// Each record is attempted exactly once; a failed persist is logged and
// dropped. Two writes to the same id are persisted in global FIFO order
// only — there is no per-id ordering or deduplication.
package writeback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smallnest/chanx"
	"go.uber.org/zap"

	"github.com/kabilaymen/caching-demo/metrics"
	"github.com/kabilaymen/caching-demo/product"
	"github.com/kabilaymen/caching-demo/store"
)

var (
	// ErrNotRunning reports an enqueue against a pipeline that is not
	// accepting work.
	ErrNotRunning = errors.New("writeback: pipeline is not running")
	// ErrQueueFull reports that MaxPending was reached.
	ErrQueueFull = errors.New("writeback: queue is full")
	// ErrDrainTimeout reports that Stop gave up waiting for the worker.
	// The worker keeps draining in the background; the error is a
	// warning, not a corruption signal.
	ErrDrainTimeout = errors.New("writeback: drain timed out")
)

// State is the pipeline lifecycle phase.
type State int32

const (
	StateStopped State = iota
	StateRunning
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "stopped"
	}
}

// Pipeline owns the queue and the worker goroutine. All lifecycle
// transitions happen under mu; the pending counter tracks records that
// are enqueued or mid-persist.
type Pipeline struct {
	store   store.ProductStore
	metrics *metrics.Collector
	log     *zap.Logger
	opts    Options

	mu      sync.Mutex
	state   State
	queue   *chanx.UnboundedChan[product.Product]
	done    chan struct{}
	pending atomic.Int64
}

// New builds a stopped pipeline; call Start to spawn the worker.
func New(s store.ProductStore, m *metrics.Collector, log *zap.Logger, opts Options) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{store: s, metrics: m, log: log, opts: opts.withDefaults()}
}

// Start spawns the worker. Starting a pipeline that is already running
// or draining is a no-op.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateStopped {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.queue = chanx.NewUnboundedChan[product.Product](ctx, p.opts.QueueCapacity)
	p.done = make(chan struct{})
	p.state = StateRunning

	go p.work(p.queue.Out, p.done, cancel)
	p.log.Info("write-back pipeline started")
}

// Enqueue appends a record for deferred persistence. The corresponding
// cache entry must already hold the same data.
func (p *Pipeline) Enqueue(item product.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateRunning {
		return ErrNotRunning
	}
	if p.opts.MaxPending > 0 && p.pending.Load() >= int64(p.opts.MaxPending) {
		return ErrQueueFull
	}
	p.pending.Add(1)
	p.queue.In <- item
	return nil
}

// Stop closes the queue and waits for the worker to drain it. Stopping
// a stopped pipeline is a no-op. When the drain outlives the timeout,
// Stop returns ErrDrainTimeout and leaves the worker finishing in the
// background.
func (p *Pipeline) Stop(timeout time.Duration) error {
	p.mu.Lock()
	switch p.state {
	case StateStopped:
		p.mu.Unlock()
		return nil
	case StateDraining:
		// A previous Stop timed out; wait for the same worker again.
		done := p.done
		p.mu.Unlock()
		return p.await(done, timeout)
	}
	p.state = StateDraining
	close(p.queue.In)
	done := p.done
	p.mu.Unlock()

	p.log.Info("write-back pipeline draining", zap.Int64("pending", p.pending.Load()))
	return p.await(done, timeout)
}

func (p *Pipeline) await(done chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		p.log.Warn("write-back worker did not finish within timeout",
			zap.Duration("timeout", timeout),
			zap.Int64("pending", p.pending.Load()))
		return ErrDrainTimeout
	}
}

// Drain blocks until every enqueued record has been persisted (or
// dropped) without stopping the pipeline.
func (p *Pipeline) Drain(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// State reports the current lifecycle phase.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pending reports records enqueued but not yet persisted or dropped.
func (p *Pipeline) Pending() int64 {
	return p.pending.Load()
}

func (p *Pipeline) work(out <-chan product.Product, done chan struct{}, cancel context.CancelFunc) {
	defer func() {
		cancel()
		p.mu.Lock()
		p.state = StateStopped
		p.mu.Unlock()
		close(done)
		p.log.Info("write-back worker exited")
	}()

	for item := range out {
		p.persist(item)
		p.pending.Add(-1)
	}
}

// persist attempts the durable write exactly once; failures drop the
// record.
func (p *Pipeline) persist(item product.Product) {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.PersistTimeout)
	defer cancel()

	p.metrics.RecordStoreWrite()
	if _, err := p.store.Upsert(ctx, item); err != nil {
		p.log.Error("write-back persist failed, dropping record",
			zap.Int64("id", item.ID), zap.Error(err))
		return
	}
	p.log.Debug("write-back persisted record", zap.Int64("id", item.ID))
}

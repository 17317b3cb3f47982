package writeback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kabilaymen/caching-demo/metrics"
	"github.com/kabilaymen/caching-demo/product"
	"github.com/kabilaymen/caching-demo/store"
)

type fakeStore struct {
	mu       sync.Mutex
	products map[int64]product.Product
	failIDs  map[int64]bool
	release  chan struct{} // when set, Upsert blocks until closed
}

func newFakeStore() *fakeStore {
	return &fakeStore{products: make(map[int64]product.Product), failIDs: make(map[int64]bool)}
}

func (s *fakeStore) Get(_ context.Context, id int64) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return product.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) Upsert(ctx context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	release := s.release
	s.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return product.Product{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[p.ID] {
		return product.Product{}, errors.New("upsert refused")
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *fakeStore) get(id int64) (product.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	return p, ok
}

func newTestPipeline(s store.ProductStore, opts Options) (*Pipeline, *metrics.Collector) {
	c := metrics.NewCollector()
	return New(s, c, zap.NewNop(), opts), c
}

func TestEnqueueAndDrain(t *testing.T) {
	fs := newFakeStore()
	p, collector := newTestPipeline(fs, Options{})
	p.Start()
	defer func() { _ = p.Stop(time.Second) }()

	for i := int64(1); i <= 5; i++ {
		if err := p.Enqueue(product.Product{ID: i, Name: "Widget", Price: float64(i)}); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	for i := int64(1); i <= 5; i++ {
		if _, ok := fs.get(i); !ok {
			t.Fatalf("record %d not persisted after drain", i)
		}
	}
	if got := collector.Snapshot().StoreWrites; got != 5 {
		t.Fatalf("store writes = %d, want 5", got)
	}
}

func TestStopDrainsQueue(t *testing.T) {
	fs := newFakeStore()
	p, _ := newTestPipeline(fs, Options{})
	p.Start()

	if err := p.Enqueue(product.Product{ID: 2, Name: "Gadget", Price: 1}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := p.Stop(10 * time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if _, ok := fs.get(2); !ok {
		t.Fatal("record not persisted by the time Stop returned")
	}
	if got := p.State(); got != StateStopped {
		t.Fatalf("state after Stop = %v, want stopped", got)
	}
}

func TestLifecycleNoOps(t *testing.T) {
	fs := newFakeStore()
	p, _ := newTestPipeline(fs, Options{})

	// Stopping a never-started pipeline is a no-op.
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("Stop() of stopped pipeline = %v, want nil", err)
	}

	p.Start()
	p.Start() // second start is a no-op
	if got := p.State(); got != StateRunning {
		t.Fatalf("state after double start = %v, want running", got)
	}

	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("second Stop() = %v, want nil", err)
	}
}

func TestEnqueueWhenStopped(t *testing.T) {
	fs := newFakeStore()
	p, _ := newTestPipeline(fs, Options{})

	if err := p.Enqueue(product.Product{ID: 1, Name: "Widget", Price: 1}); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Enqueue() on stopped pipeline = %v, want ErrNotRunning", err)
	}
}

func TestMaxPendingBound(t *testing.T) {
	fs := newFakeStore()
	fs.release = make(chan struct{})
	p, _ := newTestPipeline(fs, Options{MaxPending: 2})
	p.Start()
	defer func() {
		close(fs.release)
		_ = p.Stop(time.Second)
	}()

	if err := p.Enqueue(product.Product{ID: 1, Name: "A", Price: 1}); err != nil {
		t.Fatalf("Enqueue(1) error = %v", err)
	}
	if err := p.Enqueue(product.Product{ID: 2, Name: "B", Price: 1}); err != nil {
		t.Fatalf("Enqueue(2) error = %v", err)
	}
	if err := p.Enqueue(product.Product{ID: 3, Name: "C", Price: 1}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue(3) = %v, want ErrQueueFull", err)
	}
}

func TestFailedPersistIsDropped(t *testing.T) {
	fs := newFakeStore()
	fs.failIDs[1] = true
	p, _ := newTestPipeline(fs, Options{})
	p.Start()
	defer func() { _ = p.Stop(time.Second) }()

	if err := p.Enqueue(product.Product{ID: 1, Name: "Doomed", Price: 1}); err != nil {
		t.Fatalf("Enqueue(1) error = %v", err)
	}
	if err := p.Enqueue(product.Product{ID: 2, Name: "Fine", Price: 1}); err != nil {
		t.Fatalf("Enqueue(2) error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	if _, ok := fs.get(1); ok {
		t.Fatal("failed record was persisted")
	}
	if _, ok := fs.get(2); !ok {
		t.Fatal("worker stopped after a failed record")
	}
}

func TestStopTimeout(t *testing.T) {
	fs := newFakeStore()
	fs.release = make(chan struct{})
	p, _ := newTestPipeline(fs, Options{PersistTimeout: time.Minute})
	p.Start()

	if err := p.Enqueue(product.Product{ID: 1, Name: "Slow", Price: 1}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if err := p.Stop(50 * time.Millisecond); !errors.Is(err, ErrDrainTimeout) {
		t.Fatalf("Stop() = %v, want ErrDrainTimeout", err)
	}
	if got := p.State(); got != StateDraining {
		t.Fatalf("state after timed-out Stop = %v, want draining", got)
	}

	// Unblock the store: the worker finishes in the background and a
	// later Stop observes the drained state.
	close(fs.release)
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("second Stop() = %v, want nil", err)
	}
	if _, ok := fs.get(1); !ok {
		t.Fatal("record lost after delayed drain")
	}
}

func TestRestartAfterStop(t *testing.T) {
	fs := newFakeStore()
	p, _ := newTestPipeline(fs, Options{})
	p.Start()
	if err := p.Stop(time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	p.Start()
	defer func() { _ = p.Stop(time.Second) }()
	if err := p.Enqueue(product.Product{ID: 9, Name: "Again", Price: 1}); err != nil {
		t.Fatalf("Enqueue() after restart error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Drain(ctx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if _, ok := fs.get(9); !ok {
		t.Fatal("record not persisted after restart")
	}
}

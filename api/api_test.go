package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kabilaymen/caching-demo/cache/memory"
	"github.com/kabilaymen/caching-demo/metrics"
	"github.com/kabilaymen/caching-demo/product"
	"github.com/kabilaymen/caching-demo/sim"
	"github.com/kabilaymen/caching-demo/store"
	"github.com/kabilaymen/caching-demo/strategy"
	"github.com/kabilaymen/caching-demo/writeback"
)

type memProductStore struct {
	mu       sync.Mutex
	products map[int64]product.Product
}

func newMemProductStore() *memProductStore {
	return &memProductStore{products: make(map[int64]product.Product)}
}

func (s *memProductStore) Get(_ context.Context, id int64) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return product.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *memProductStore) Upsert(_ context.Context, p product.Product) (product.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return p, nil
}

func (s *memProductStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = make(map[int64]product.Product)
	return nil
}

func newTestServer(t *testing.T) (*Server, *memProductStore) {
	t.Helper()
	ps := newMemProductStore()
	mem := memory.NewStore(0)
	t.Cleanup(func() { mem.Close() })
	collector := metrics.NewCollector(strategy.Names()...)

	pipeline := writeback.New(ps, collector, zap.NewNop(), writeback.Options{})
	pipeline.Start()
	t.Cleanup(func() { _ = pipeline.Stop(time.Second) })

	engine, err := strategy.NewEngine(strategy.Config{
		Cache:    mem,
		Store:    ps,
		Metrics:  collector,
		Pipeline: pipeline,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	runner, err := sim.NewRunner(sim.RunnerConfig{
		Engine:   engine,
		Metrics:  collector,
		Pipeline: pipeline,
		Flusher:  mem,
		Resetter: ps,
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	h := NewHandler(HandlerConfig{
		Engine:  engine,
		Metrics: collector,
		Runner:  runner,
		Store:   ps,
		Logger:  zap.NewNop(),
	})
	return NewServer(h), ps
}

func doJSON(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echoContentType, echoJSONMime)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

const (
	echoContentType = "Content-Type"
	echoJSONMime    = "application/json"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestWriteThenReadProduct(t *testing.T) {
	srv, _ := newTestServer(t)

	p := product.Product{ID: 1, Name: "Widget", Price: 9.99, Description: "a widget"}
	rec := doJSON(t, srv, http.MethodPost, "/api/products?strategy=write_through", p)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	// Writing the same id again is an update.
	rec = doJSON(t, srv, http.MethodPost, "/api/products?strategy=write_through", p)
	if rec.Code != http.StatusOK {
		t.Fatalf("second POST status = %d, want 200", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/products/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d: %s", rec.Code, rec.Body.String())
	}
	var got product.Product
	decode(t, rec, &got)
	if got != p {
		t.Fatalf("GET body = %+v, want %+v", got, p)
	}
}

func TestGetProductErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing product", "/api/products/42", http.StatusNotFound},
		{"bad id", "/api/products/abc", http.StatusBadRequest},
		{"zero id", "/api/products/0", http.StatusBadRequest},
		{"unknown strategy", "/api/products/1?strategy=bogus", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodGet, tt.target, nil)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			var body map[string]any
			decode(t, rec, &body)
			if _, ok := body["error"]; !ok {
				t.Fatalf("error body missing error field: %s", rec.Body.String())
			}
		})
	}
}

func TestWriteProductValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/products", product.Product{ID: 0, Name: "x", Price: 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader("{broken"))
	req.Header.Set(echoContentType, echoJSONMime)
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", rec2.Code)
	}
}

func TestWriteBackPersistsAsynchronously(t *testing.T) {
	srv, ps := newTestServer(t)

	p := product.Product{ID: 7, Name: "Deferred", Price: 3}
	rec := doJSON(t, srv, http.MethodPost, "/api/products?strategy=write_back", p)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d: %s", rec.Code, rec.Body.String())
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, err := ps.Get(context.Background(), 7); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("write-back record never reached the store")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	srv, ps := newTestServer(t)
	ps.products[1] = product.Product{ID: 1, Name: "Widget", Price: 1}

	// One miss populating the cache, then one hit.
	for i := 0; i < 2; i++ {
		if rec := doJSON(t, srv, http.MethodGet, "/api/products/1", nil); rec.Code != http.StatusOK {
			t.Fatalf("GET status = %d", rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	var snap metrics.Snapshot
	decode(t, rec, &snap)
	if snap.CacheHits != 1 || snap.CacheMisses != 1 || snap.HitRate != 50 {
		t.Fatalf("snapshot = %+v, want 1 hit / 1 miss / 50%%", snap)
	}

	if rec = doJSON(t, srv, http.MethodPost, "/api/metrics/reset", nil); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/metrics", nil)
	decode(t, rec, &snap)
	if snap.CacheHits != 0 || snap.CacheMisses != 0 {
		t.Fatalf("snapshot after reset = %+v", snap)
	}
}

func TestSimulateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	reads, writes := 10, 4
	rec := doJSON(t, srv, http.MethodPost, "/api/simulate", map[string]any{
		"strategy": "cache_aside",
		"reads":    reads,
		"writes":   writes,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("simulate status = %d: %s", rec.Code, rec.Body.String())
	}
	var result sim.Result
	decode(t, rec, &result)
	if result.Strategy != "cache_aside" || result.RequestedReads != reads || result.RequestedWrites != writes {
		t.Fatalf("result = %+v", result)
	}
	if result.SuccessfulWrites != writes {
		t.Fatalf("successful writes = %d, want %d", result.SuccessfulWrites, writes)
	}
}

func TestSimulateRequiresStrategy(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/simulate", map[string]any{"reads": 1})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/simulate", map[string]any{"strategy": "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestCompareEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/compare", map[string]any{"reads": 8, "writes": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("compare status = %d: %s", rec.Code, rec.Body.String())
	}
	var results map[string]sim.Result
	decode(t, rec, &results)
	if len(results) != 5 {
		t.Fatalf("compare returned %d strategies, want 5", len(results))
	}
	for _, name := range strategy.Names() {
		if _, ok := results[name]; !ok {
			t.Fatalf("missing strategy %q in comparison", name)
		}
	}
}

func TestIndexPage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<html") {
		t.Fatalf("index did not return HTML: %q", rec.Body.String()[:min(80, rec.Body.Len())])
	}
}

func TestWriteBackUnavailableMapsTo503(t *testing.T) {
	// A server whose engine has no pipeline wired.
	ps := newMemProductStore()
	mem := memory.NewStore(0)
	t.Cleanup(func() { mem.Close() })
	collector := metrics.NewCollector(strategy.Names()...)
	engine, err := strategy.NewEngine(strategy.Config{
		Cache: mem, Store: ps, Metrics: collector, Logger: zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	h := NewHandler(HandlerConfig{Engine: engine, Metrics: collector, Store: ps, Logger: zap.NewNop()})
	srv := NewServer(h)

	rec := doJSON(t, srv, http.MethodPost, "/api/products?strategy=write_back",
		product.Product{ID: 1, Name: "Widget", Price: 1})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
}

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kabilaymen/caching-demo/metrics"
	"github.com/kabilaymen/caching-demo/product"
	"github.com/kabilaymen/caching-demo/sim"
	"github.com/kabilaymen/caching-demo/store"
	"github.com/kabilaymen/caching-demo/strategy"
	"github.com/kabilaymen/caching-demo/writeback"
)

const defaultStrategy = strategy.CacheAside

// Handler carries the dependencies the routes need.
type Handler struct {
	engine   *strategy.Engine
	metrics  *metrics.Collector
	runner   *sim.Runner
	store    store.ProductStore
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

// HandlerConfig wires a Handler. Gatherer is optional; without it the
// Prometheus endpoint is not registered.
type HandlerConfig struct {
	Engine   *strategy.Engine
	Metrics  *metrics.Collector
	Runner   *sim.Runner
	Store    store.ProductStore
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewHandler builds the route handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{
		engine:   cfg.Engine,
		metrics:  cfg.Metrics,
		runner:   cfg.Runner,
		store:    cfg.Store,
		gatherer: cfg.Gatherer,
		log:      cfg.Logger,
	}
}

// Register mounts every route on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.index)
	e.GET("/api/products/:id", h.getProduct)
	e.POST("/api/products", h.writeProduct)
	e.GET("/api/metrics", h.getMetrics)
	e.POST("/api/metrics/reset", h.resetMetrics)
	e.POST("/api/simulate", h.simulate)
	e.POST("/api/compare", h.compare)
	if h.gatherer != nil {
		e.GET("/metrics/prometheus", echo.WrapHandler(
			promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
}

func (h *Handler) getProduct(c echo.Context) error {
	s, err := strategyParam(c)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product id must be a positive integer")
	}

	p, err := h.engine.Read(c.Request().Context(), id, s)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) writeProduct(c echo.Context) error {
	s, err := strategyParam(c)
	if err != nil {
		return err
	}
	var p product.Product
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product payload")
	}
	if err := p.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	// Existence decides the status code; write-back may not have
	// persisted yet, so check before writing.
	status := http.StatusOK
	if _, err := h.store.Get(ctx, p.ID); errors.Is(err, store.ErrNotFound) {
		status = http.StatusCreated
	}

	saved, err := h.engine.Write(ctx, p, s)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(status, saved)
}

func (h *Handler) getMetrics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.metrics.Snapshot())
}

func (h *Handler) resetMetrics(c echo.Context) error {
	h.log.Info("resetting metrics via API")
	h.metrics.Reset()
	return c.JSON(http.StatusOK, map[string]string{"message": "metrics reset"})
}

type simulateRequest struct {
	Strategy string `json:"strategy"`
	Reads    *int   `json:"reads"`
	Writes   *int   `json:"writes"`
	Seed     int64  `json:"seed"`
}

func (h *Handler) simulate(c echo.Context) error {
	var req simulateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid simulation payload")
	}
	if req.Strategy == "" {
		return echo.NewHTTPError(http.StatusBadRequest, `missing "strategy" parameter`)
	}
	s, err := strategy.Parse(req.Strategy)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cfg := sim.Config{Reads: 100, Writes: 20, Seed: req.Seed}
	if req.Reads != nil {
		cfg.Reads = *req.Reads
	}
	if req.Writes != nil {
		cfg.Writes = *req.Writes
	}

	result, err := h.runner.Run(c.Request().Context(), s, cfg)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, result)
}

type compareRequest struct {
	Reads      *int  `json:"reads"`
	Writes     *int  `json:"writes"`
	ResetStore *bool `json:"reset_store"`
	Seed       int64 `json:"seed"`
}

func (h *Handler) compare(c echo.Context) error {
	var req compareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid comparison payload")
	}

	cfg := sim.CompareConfig{Reads: 100, Writes: 20, ResetStore: true, Seed: req.Seed}
	if req.Reads != nil {
		cfg.Reads = *req.Reads
	}
	if req.Writes != nil {
		cfg.Writes = *req.Writes
	}
	if req.ResetStore != nil {
		cfg.ResetStore = *req.ResetStore
	}

	results, err := h.runner.Compare(c.Request().Context(), cfg)
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(http.StatusOK, results)
}

func strategyParam(c echo.Context) (strategy.Strategy, error) {
	name := c.QueryParam("strategy")
	if name == "" {
		return defaultStrategy, nil
	}
	s, err := strategy.Parse(name)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return s, nil
}

func mapEngineError(err error) error {
	switch {
	case errors.Is(err, strategy.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	case errors.Is(err, product.ErrInvalid), errors.Is(err, strategy.ErrUnknownStrategy):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, strategy.ErrCacheUnavailable),
		errors.Is(err, writeback.ErrNotRunning),
		errors.Is(err, writeback.ErrQueueFull):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

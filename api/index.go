package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const indexPage = `<html>
  <head><title>Caching Strategies Demo</title></head>
  <body>
    <h1>Caching Strategies Demo</h1>
    <p>Demonstrates cache-consistency strategies over Redis and PostgreSQL.</p>
    <h2>Endpoints</h2>
    <ul>
      <li>GET /api/products/{id}?strategy={strategy}</li>
      <li>POST /api/products?strategy={strategy} — {"id": N, "name": "...", "price": ..., "description": "..."}</li>
      <li>GET /api/metrics</li>
      <li>POST /api/metrics/reset</li>
      <li>POST /api/simulate — {"strategy": "...", "reads": N, "writes": M}</li>
      <li>POST /api/compare — {"reads": N, "writes": M, "reset_store": true}</li>
      <li>GET /metrics/prometheus</li>
    </ul>
    <h2>Strategies</h2>
    <ul>
      <li>cache_aside</li>
      <li>read_through (simulated)</li>
      <li>write_through</li>
      <li>write_around</li>
      <li>write_back</li>
    </ul>
  </body>
</html>`

func (h *Handler) index(c echo.Context) error {
	return c.HTML(http.StatusOK, indexPage)
}

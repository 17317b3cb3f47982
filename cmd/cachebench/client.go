package main

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kabilaymen/caching-demo/sim"
)

// client wraps the cachedemo HTTP API.
type client struct {
	rest *resty.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &client{rest: rest}
}

func (c *client) resetMetrics() error {
	resp, err := c.rest.R().Post("/api/metrics/reset")
	if err != nil {
		return fmt.Errorf("reset metrics: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("reset metrics: %s: %s", resp.Status(), resp.Body())
	}
	return nil
}

func (c *client) simulate(strategy string, reads, writes int) (sim.Result, error) {
	var result sim.Result
	resp, err := c.rest.R().
		SetBody(map[string]any{"strategy": strategy, "reads": reads, "writes": writes}).
		SetResult(&result).
		Post("/api/simulate")
	if err != nil {
		return sim.Result{}, fmt.Errorf("simulate %s: %w", strategy, err)
	}
	if resp.IsError() {
		return sim.Result{}, fmt.Errorf("simulate %s: %s: %s", strategy, resp.Status(), resp.Body())
	}
	return result, nil
}

func (c *client) compare(reads, writes int, resetStore bool) (map[string]sim.Result, error) {
	var results map[string]sim.Result
	resp, err := c.rest.R().
		SetBody(map[string]any{"reads": reads, "writes": writes, "reset_store": resetStore}).
		SetResult(&results).
		Post("/api/compare")
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("compare: %s: %s", resp.Status(), resp.Body())
	}
	return results, nil
}

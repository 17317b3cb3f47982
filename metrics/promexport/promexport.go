// Package promexport bridges the metrics collector into a Prometheus
// registry. The exporter reads a fresh snapshot on every scrape, so the
// collector stays the single source of truth and Reset semantics are
// preserved.
package promexport

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kabilaymen/caching-demo/metrics"
)

var (
	descCacheHits = prometheus.NewDesc(
		"cachedemo_cache_hits_total", "Cache lookups served from the cache.", nil, nil)
	descCacheMisses = prometheus.NewDesc(
		"cachedemo_cache_misses_total", "Cache lookups that fell through to the store.", nil, nil)
	descStoreReads = prometheus.NewDesc(
		"cachedemo_store_reads_total", "Point lookups against the durable store.", nil, nil)
	descStoreWrites = prometheus.NewDesc(
		"cachedemo_store_writes_total", "Upserts against the durable store.", nil, nil)
	descHitRate = prometheus.NewDesc(
		"cachedemo_cache_hit_rate", "Cache hit rate in percent since the last reset.", nil, nil)
	descAvgLatency = prometheus.NewDesc(
		"cachedemo_avg_operation_seconds", "Average operation latency per strategy and op.",
		[]string{"strategy", "op"}, nil)
)

// Exporter implements prometheus.Collector on top of metrics.Collector.
type Exporter struct {
	collector *metrics.Collector
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter wraps a collector for scraping.
func NewExporter(c *metrics.Collector) *Exporter {
	return &Exporter{collector: c}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- descCacheHits
	ch <- descCacheMisses
	ch <- descStoreReads
	ch <- descStoreWrites
	ch <- descHitRate
	ch <- descAvgLatency
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.collector.Snapshot()
	ch <- prometheus.MustNewConstMetric(descCacheHits, prometheus.CounterValue, float64(snap.CacheHits))
	ch <- prometheus.MustNewConstMetric(descCacheMisses, prometheus.CounterValue, float64(snap.CacheMisses))
	ch <- prometheus.MustNewConstMetric(descStoreReads, prometheus.CounterValue, float64(snap.StoreReads))
	ch <- prometheus.MustNewConstMetric(descStoreWrites, prometheus.CounterValue, float64(snap.StoreWrites))
	ch <- prometheus.MustNewConstMetric(descHitRate, prometheus.GaugeValue, snap.HitRate)
	for strategy, times := range snap.AvgOperationTimes {
		ch <- prometheus.MustNewConstMetric(descAvgLatency, prometheus.GaugeValue, times.Read, strategy, "read")
		ch <- prometheus.MustNewConstMetric(descAvgLatency, prometheus.GaugeValue, times.Write, strategy, "write")
	}
}

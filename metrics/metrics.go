// Package metrics counts cache and store activity and samples
// per-strategy operation latencies. The collector is shared by every
// concurrent strategy invocation, so all mutation and the snapshot read
// run under one mutex; Reset is atomic with respect to concurrent
// recordings.
package metrics

import (
	"sync"
	"time"
)

// OpTimes carries average read/write latencies for one strategy, in
// seconds, 0 when no samples were recorded.
type OpTimes struct {
	Read  float64 `json:"read"`
	Write float64 `json:"write"`
}

// Snapshot is a point-in-time copy of the collector state. HitRate is a
// percentage, 0 when no lookups occurred.
type Snapshot struct {
	CacheHits         int64              `json:"cache_hits"`
	CacheMisses       int64              `json:"cache_misses"`
	HitRate           float64            `json:"hit_rate"`
	StoreReads        int64              `json:"store_reads"`
	StoreWrites       int64              `json:"store_writes"`
	AvgOperationTimes map[string]OpTimes `json:"avg_operation_times"`
}

type samples struct {
	read  []time.Duration
	write []time.Duration
}

// Collector accumulates counters and latency samples until Reset.
type Collector struct {
	mu          sync.Mutex
	strategies  []string
	cacheHits   int64
	cacheMisses int64
	storeReads  int64
	storeWrites int64
	times       map[string]*samples
}

// NewCollector builds a collector. Pre-registered strategy names appear
// in every snapshot even before any operation ran.
func NewCollector(strategies ...string) *Collector {
	c := &Collector{strategies: append([]string(nil), strategies...)}
	c.times = c.seededTimes()
	return c
}

func (c *Collector) seededTimes() map[string]*samples {
	times := make(map[string]*samples, len(c.strategies))
	for _, name := range c.strategies {
		times[name] = &samples{}
	}
	return times
}

func (c *Collector) RecordHit() {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

func (c *Collector) RecordMiss() {
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

func (c *Collector) RecordStoreRead() {
	c.mu.Lock()
	c.storeReads++
	c.mu.Unlock()
}

func (c *Collector) RecordStoreWrite() {
	c.mu.Lock()
	c.storeWrites++
	c.mu.Unlock()
}

// RecordLatency appends a latency sample for one strategy dispatch. Op
// is "read" or "write"; anything else is ignored.
func (c *Collector) RecordLatency(strategy, op string, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.times[strategy]
	if !ok {
		s = &samples{}
		c.times[strategy] = s
	}
	switch op {
	case "read":
		s.read = append(s.read, elapsed)
	case "write":
		s.write = append(s.write, elapsed)
	}
}

// Snapshot copies the current state.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		CacheHits:         c.cacheHits,
		CacheMisses:       c.cacheMisses,
		StoreReads:        c.storeReads,
		StoreWrites:       c.storeWrites,
		AvgOperationTimes: make(map[string]OpTimes, len(c.times)),
	}
	if total := c.cacheHits + c.cacheMisses; total > 0 {
		snap.HitRate = float64(c.cacheHits) / float64(total) * 100
	}
	for name, s := range c.times {
		snap.AvgOperationTimes[name] = OpTimes{
			Read:  average(s.read),
			Write: average(s.write),
		}
	}
	return snap
}

// Reset zeroes all counters and samples in one critical section.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.cacheHits = 0
	c.cacheMisses = 0
	c.storeReads = 0
	c.storeWrites = 0
	c.times = c.seededTimes()
	c.mu.Unlock()
}

func average(d []time.Duration) float64 {
	if len(d) == 0 {
		return 0
	}
	var total time.Duration
	for _, v := range d {
		total += v
	}
	return total.Seconds() / float64(len(d))
}

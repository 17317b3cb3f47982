package main

import (
	"fmt"
	"sort"

	"github.com/kabilaymen/caching-demo/sim"
)

func printResult(r sim.Result) {
	m := r.Metrics
	fmt.Printf("\nStrategy: %s\n", r.Strategy)
	fmt.Printf("  Reads:        %d/%d successful\n", r.SuccessfulReads, r.RequestedReads)
	fmt.Printf("  Writes:       %d/%d successful\n", r.SuccessfulWrites, r.RequestedWrites)
	fmt.Printf("  Cache hits:   %d\n", m.CacheHits)
	fmt.Printf("  Cache misses: %d\n", m.CacheMisses)
	fmt.Printf("  Hit rate:     %.2f%%\n", m.HitRate)
	fmt.Printf("  Store reads:  %d\n", m.StoreReads)
	fmt.Printf("  Store writes: %d\n", m.StoreWrites)
	if times, ok := m.AvgOperationTimes[r.Strategy]; ok {
		fmt.Printf("  Avg read:     %.3f ms\n", times.Read*1000)
		fmt.Printf("  Avg write:    %.3f ms\n", times.Write*1000)
	}
}

type ranked struct {
	strategy string
	value    float64
}

func printAnalysis(results map[string]sim.Result) {
	fmt.Println("\n===== PERFORMANCE ANALYSIS =====")

	hitRates := make([]ranked, 0, len(results))
	readTimes := make([]ranked, 0, len(results))
	writeTimes := make([]ranked, 0, len(results))
	for name, r := range results {
		hitRates = append(hitRates, ranked{name, r.Metrics.HitRate})
		times := r.Metrics.AvgOperationTimes[name]
		readTimes = append(readTimes, ranked{name, times.Read * 1000})
		writeTimes = append(writeTimes, ranked{name, times.Write * 1000})
	}

	sort.Slice(hitRates, func(i, j int) bool { return hitRates[i].value > hitRates[j].value })
	fmt.Println("\nCache hit rates (highest to lowest):")
	for _, r := range hitRates {
		fmt.Printf("  %-14s %.2f%%\n", r.strategy, r.value)
	}

	sort.Slice(readTimes, func(i, j int) bool { return readTimes[i].value < readTimes[j].value })
	fmt.Println("\nRead times (fastest to slowest):")
	for _, r := range readTimes {
		fmt.Printf("  %-14s %.3f ms\n", r.strategy, r.value)
	}

	sort.Slice(writeTimes, func(i, j int) bool { return writeTimes[i].value < writeTimes[j].value })
	fmt.Println("\nWrite times (fastest to slowest):")
	for _, r := range writeTimes {
		fmt.Printf("  %-14s %.3f ms\n", r.strategy, r.value)
	}
}

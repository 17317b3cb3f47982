package main

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags.
	baseURL string
	reads   int
	writes  int
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "cachebench",
	Short: "Benchmark cache-consistency strategies against a cachedemo server",
	Long: `cachebench drives a running cachedemo server through its simulation
endpoints and reports hit rates and operation latencies per strategy.

Examples:
  # Run one strategy
  cachebench simulate write_back --reads 1000 --writes 200

  # Compare every strategy under the same workload
  cachebench compare --reads 10000 --writes 10`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8080", "cachedemo server base URL")
	rootCmd.PersistentFlags().IntVar(&reads, "reads", 1000, "number of read operations")
	rootCmd.PersistentFlags().IntVar(&writes, "writes", 200, "number of write operations")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")
}

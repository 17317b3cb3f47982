package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kabilaymen/caching-demo/strategy"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <strategy>",
	Short: "Run one strategy's workload and print its metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	s, err := strategy.Parse(args[0])
	if err != nil {
		return err
	}

	api := newClient(baseURL, timeout)
	if err := api.resetMetrics(); err != nil {
		return err
	}

	fmt.Printf("Running simulation for strategy %s (%d reads, %d writes)...\n", s, reads, writes)
	result, err := api.simulate(string(s), reads, writes)
	if err != nil {
		return err
	}

	printResult(result)
	return nil
}

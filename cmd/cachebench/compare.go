package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keepStore bool

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run every strategy under the same workload and rank them",
	RunE:  runCompare,
}

func init() {
	compareCmd.Flags().BoolVar(&keepStore, "keep-store", false, "do not reset the durable store between strategies")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	api := newClient(baseURL, timeout)

	fmt.Printf("Comparing all strategies (%d reads, %d writes)...\n", reads, writes)
	results, err := api.compare(reads, writes, !keepStore)
	if err != nil {
		return err
	}

	printAnalysis(results)
	return nil
}

// Command cachebench drives a running cachedemo server through its
// simulation endpoints and reports how the strategies compare.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

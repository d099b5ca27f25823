// Command aigis resolves tenant database connections, runs SQL against them
// and serves the ops endpoints.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

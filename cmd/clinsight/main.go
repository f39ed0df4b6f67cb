// Package main is the clinsight entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/clinsight/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

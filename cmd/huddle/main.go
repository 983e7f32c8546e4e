// Package main is the entry point for the huddle CLI.
package main

import (
	"os"

	"github.com/scttfrdmn/agenkit/huddle-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the driftwatch CLI.
package main

import (
	"os"

	"github.com/driftwatch/driftwatch/cmd/driftwatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

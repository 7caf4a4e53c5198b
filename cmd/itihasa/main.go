// Package main provides the entry point for the itihasa CLI.
package main

import (
	"os"

	"github.com/ayodhya-labs/itihasa/cmd/itihasa/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package main is the entry point for the sambee application.
package main

import (
	"os"

	"github.com/sambee/sambee/cmd/sambee/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

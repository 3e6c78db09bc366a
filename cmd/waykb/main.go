// Package main provides the entry point for the waykb CLI.
package main

import (
	"os"

	"github.com/waycore/waykb/cmd/waykb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

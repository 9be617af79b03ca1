// Package main provides the entry point for the kwindex CLI.
package main

import (
	"os"

	"github.com/kwindex/kwindex/cmd/kwindex/cmd"
)

func main() {
	err := cmd.Execute()
	os.Exit(cmd.ExitCode(err))
}

// Package main is the entry point for the stagerouter CLI.
package main

import (
	"fmt"
	"os"

	"github.com/dshills/stagerouter/cmd/stagerouter/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

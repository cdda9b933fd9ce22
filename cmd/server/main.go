// Package main implements the entry point for the Scry deck generation
// server. It serves the HTTP API by default and carries maintenance
// subcommands for migrations, profiles and development tokens.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

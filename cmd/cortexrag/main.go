// Package main provides the entry point for the cortexrag CLI.
package main

import (
	"os"

	"github.com/cortexdesk/cortexrag/cmd/cortexrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"lsp-bridge/internal/cli"
)

// runMain is extracted so the exit path can be tested
func runMain() int {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain())
}

package main

import (
	"fmt"
	"os"

	"github.com/pkgtrust/npm-verify-tool/internal/utils/logger"
)

func main() {
	rootCmd := createRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if l := logger.Logger(); l != nil {
			l.Sync()
		}
		os.Exit(1)
	}
	if l := logger.Logger(); l != nil {
		l.Sync()
	}
}

package main

import (
	"os"

	"github.com/margin-labs/margin/internal/infrastructure/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

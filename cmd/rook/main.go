package main

import (
	"os"

	"github.com/buemura/rook/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

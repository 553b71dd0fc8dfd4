package main

import (
	"os"

	"github.com/vbp1/schemaclone/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

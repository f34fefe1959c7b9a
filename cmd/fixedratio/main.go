package main

import (
	"os"

	"github.com/lugondev/fixed-ratio-trading/cmd/fixedratio/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

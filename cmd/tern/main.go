package main

import (
	"os"

	"github.com/ternledger/tern-go/cmd/tern/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

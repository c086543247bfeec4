package main

import (
	"os"

	"github.com/k3nlo/Jatalog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

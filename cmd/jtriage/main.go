package main

import (
	"os"

	"github.com/Dicklesworthstone/jtriage/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

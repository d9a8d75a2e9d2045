package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/benvon/capture/cmd/capture/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		if !errors.Is(err, commands.ErrReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

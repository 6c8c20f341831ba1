// Command scratchpad runs the account-sync server of the multi-tab scratchpad.
package main

import (
	"fmt"
	"os"

	"github.com/patric-chuzhbe/scratchpad/internal/app"
)

func main() {
	if err := run(); err != nil {
		exit(err)
	}
}

func run() error {
	theApp, err := app.New()
	if err != nil {
		return fmt.Errorf("unable to start the server: %w", err)
	}
	defer theApp.Close()

	return theApp.Run()
}

// exit runs after every deferred cleanup of run has completed.
func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

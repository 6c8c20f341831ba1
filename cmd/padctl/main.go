// Command padctl is a terminal client of the scratchpad: it edits the local
// tab set and keeps it in sync with the account on the sync server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := run(); err != nil {
		exit(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, env := newRootCmd()
	defer env.close()

	return root.ExecuteContext(ctx)
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
